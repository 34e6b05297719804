// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package structuring implements the Intake Structuring stage (spec.md
// §4.1): deterministic normalization, symptom/risk-factor extraction with
// negation handling, data-quality and PHI heuristics. It never returns an
// error — every anomaly becomes a warning, per the stage's failure
// semantics.
package structuring

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// Options configures the stage. NegationWindow is the Open Question pinned
// in spec.md §9 and internal/config.SafetyConfig.NegationWindow.
type Options struct {
	NegationWindow int
}

// DefaultOptions mirrors spec.md §4.1's example (N=4).
func DefaultOptions() Options {
	return Options{NegationWindow: 4}
}

// Structure produces a StructuredIntake from a raw Intake. It is pure:
// deterministic, no I/O, no randomness (spec.md §4.1 contract).
func Structure(intake types.Intake, opts Options) types.StructuredIntake {
	if opts.NegationWindow <= 0 {
		opts.NegationWindow = DefaultOptions().NegationWindow
	}

	matchText := normalizeForMatching(strings.Join(concatFields(intake), " "))
	words := strings.Fields(matchText)

	symptoms := extractTokens(words, SymptomCatalog, opts.NegationWindow)
	riskFactors := extractTokens(words, RiskFactorCatalog, opts.NegationWindow)

	missing, warnings := evaluateDataQuality(intake, symptoms)
	phiHits := collectPHI(intake)

	summary := buildSummary(intake, symptoms, riskFactors)

	return types.StructuredIntake{
		NormalizedSummary:     summary,
		Symptoms:              symptoms,
		RiskFactors:           riskFactors,
		MissingCriticalFields: missing,
		DataQualityWarnings:   warnings,
		PHIHits:               phiHits,
		Vitals:                intake.Vitals,
		ChiefComplaint:        intake.ChiefComplaint,
		HistoryTrimmed:        strings.TrimSpace(intake.History),
		Age:                   intake.Demographics.Age,
	}
}

// concatFields joins every textual source field in the fixed order spec.md
// §4.1 names for matching: chief_complaint + history + prior_notes +
// image_descriptions.
func concatFields(intake types.Intake) []string {
	fields := []string{intake.ChiefComplaint, intake.History}
	fields = append(fields, intake.PriorNotes...)
	fields = append(fields, intake.ImageDescriptions...)
	return fields
}

// normalizeForMatching applies Unicode NFKC normalization, lowercases, and
// collapses whitespace, per spec.md §4.1.
func normalizeForMatching(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

func extractTokens(words []string, catalog []CatalogEntry, negationWindow int) []string {
	var out []string
	seen := make(map[string]bool)

	for _, entry := range catalog {
		if seen[entry.Token] {
			continue
		}
		if matchCatalogEntry(words, entry, negationWindow) {
			out = append(out, entry.Token)
			seen[entry.Token] = true
		}
	}
	return out
}

// matchCatalogEntry reports whether any keyword of entry appears in words
// without being suppressed by a negation cue in the preceding window.
func matchCatalogEntry(words []string, entry CatalogEntry, negationWindow int) bool {
	for _, keyword := range entry.Keywords {
		kwWords := strings.Fields(keyword)
		if len(kwWords) == 0 {
			continue
		}
		for i := 0; i+len(kwWords) <= len(words); i++ {
			if !sliceEquals(words[i:i+len(kwWords)], kwWords) {
				continue
			}
			if !negatedAt(words, i, negationWindow) {
				return true
			}
		}
	}
	return false
}

func sliceEquals(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// negatedAt reports whether a match starting at word index i is immediately
// preceded, within negationWindow words, by a negation cue (spec.md §4.1).
// Cues are matched as whole word tokens, not substrings, so "no"/"not" don't
// fire inside words like "nosebleed"/"nothing".
func negatedAt(words []string, i, negationWindow int) bool {
	start := i - negationWindow
	if start < 0 {
		start = 0
	}
	window := words[start:i]
	for _, cue := range NegationCues {
		cueWords := strings.Fields(cue)
		if len(cueWords) == 0 {
			continue
		}
		for j := 0; j+len(cueWords) <= len(window); j++ {
			if sliceEquals(window[j:j+len(cueWords)], cueWords) {
				return true
			}
		}
	}
	return false
}

func evaluateDataQuality(intake types.Intake, symptoms []string) (missing []string, warnings []string) {
	if strings.TrimSpace(intake.ChiefComplaint) == "" {
		missing = append(missing, "chief_complaint")
	}

	requiresVitals := false
	for _, s := range symptoms {
		if VitalsRequiredSymptoms[s] {
			requiresVitals = true
			break
		}
	}

	v := intake.Vitals
	if requiresVitals {
		if !v.HasHeartRate {
			missing = append(missing, "vitals.heart_rate")
		}
		if !v.HasSystolicBP {
			missing = append(missing, "vitals.systolic_bp")
		}
		if !v.HasSpO2 {
			missing = append(missing, "vitals.spo2")
		}
		if !v.HasTemperatureC {
			missing = append(missing, "vitals.temperature_c")
		}
	}

	if v.HasHeartRate && (v.HeartRate < 20 || v.HeartRate > 250) {
		warnings = append(warnings, "heart_rate out of plausible physiological range")
	}
	if v.HasSystolicBP && (v.SystolicBP < 40 || v.SystolicBP > 260) {
		warnings = append(warnings, "systolic_bp out of plausible physiological range")
	}
	if v.HasTemperatureC && (v.TemperatureC < 30 || v.TemperatureC > 44) {
		warnings = append(warnings, "temperature_c out of plausible physiological range")
	}
	if v.HasSpO2 && (v.SpO2 < 0 || v.SpO2 > 100) {
		warnings = append(warnings, "spo2 out of plausible physiological range")
	}
	if v.HasRespiratoryRate && (v.RespiratoryRate < 4 || v.RespiratoryRate > 70) {
		warnings = append(warnings, "respiratory_rate out of plausible physiological range")
	}
	if intake.Demographics.Age < 0 || intake.Demographics.Age > 120 {
		warnings = append(warnings, "age missing or outside plausible range")
	}

	return missing, warnings
}

func collectPHI(intake types.Intake) []string {
	var hits []string
	hits = append(hits, DetectPHI("chief_complaint", intake.ChiefComplaint)...)
	hits = append(hits, DetectPHI("history", intake.History)...)
	for i, note := range intake.PriorNotes {
		hits = append(hits, DetectPHI(fmt.Sprintf("prior_notes[%d]", i), note)...)
	}
	for i, desc := range intake.ImageDescriptions {
		hits = append(hits, DetectPHI(fmt.Sprintf("image_descriptions[%d]", i), desc)...)
	}
	return hits
}

func buildSummary(intake types.Intake, symptoms, riskFactors []string) string {
	parts := []string{"CC: " + strings.TrimSpace(intake.ChiefComplaint)}

	if hx := strings.TrimSpace(intake.History); hx != "" {
		parts = append(parts, "Hx: "+hx)
	}

	if vitalsPart := formatVitals(intake.Vitals); vitalsPart != "" {
		parts = append(parts, "Vitals: "+vitalsPart)
	}

	if len(symptoms) > 0 {
		parts = append(parts, "Symptoms: "+strings.Join(symptoms, ", "))
	}

	if len(riskFactors) > 0 {
		parts = append(parts, "RiskFactors: "+strings.Join(riskFactors, ", "))
	}

	return strings.Join(parts, " | ")
}

func formatVitals(v types.Vitals) string {
	var parts []string
	if v.HasHeartRate {
		parts = append(parts, fmt.Sprintf("HR=%g", v.HeartRate))
	}
	if v.HasSystolicBP || v.HasDiastolicBP {
		sbp, dbp := "..", ".."
		if v.HasSystolicBP {
			sbp = fmt.Sprintf("%g", v.SystolicBP)
		}
		if v.HasDiastolicBP {
			dbp = fmt.Sprintf("%g", v.DiastolicBP)
		}
		parts = append(parts, fmt.Sprintf("BP=%s/%s", sbp, dbp))
	}
	if v.HasTemperatureC {
		parts = append(parts, fmt.Sprintf("Temp=%gC", v.TemperatureC))
	}
	if v.HasSpO2 {
		parts = append(parts, fmt.Sprintf("SpO2=%g%%", v.SpO2))
	}
	if v.HasRespiratoryRate {
		parts = append(parts, fmt.Sprintf("RR=%g", v.RespiratoryRate))
	}
	return strings.Join(parts, ", ")
}
