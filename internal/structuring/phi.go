// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package structuring

import "regexp"

// phiPattern is one named heuristic scanned over textual fields. Only the
// pattern name is ever recorded — never the matched substring (spec.md
// §4.1: "Record only field:pattern_name pairs; never the matched text").
type phiPattern struct {
	name string
	re   *regexp.Regexp
}

var phiPatterns = []phiPattern{
	{name: "email", re: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)},
	{name: "phone", re: regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`)},
	{name: "ssn", re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{name: "mrn", re: regexp.MustCompile(`(?i)\bmrn\s*[:#]?\s*\d{5,}\b`)},
	{name: "dob", re: regexp.MustCompile(`(?i)\b(?:dob|date of birth)\s*[:]?\s*\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`)},
}

// DetectPHI scans one named field's text and returns "field:pattern_name"
// pairs for every PHI pattern that matches, in pattern-declaration order.
func DetectPHI(fieldName, text string) []string {
	var hits []string
	for _, p := range phiPatterns {
		if p.re.MatchString(text) {
			hits = append(hits, fieldName+":"+p.name)
		}
	}
	return hits
}
