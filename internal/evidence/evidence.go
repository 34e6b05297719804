// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package evidence implements the Evidence & Policy stage (spec.md §4.3): it
// evaluates the loaded policy pack against a StructuredIntake and assembles
// citations and deduplicated recommended actions. It never errors at request
// time — an empty match set is a valid, unremarkable result.
package evidence

import (
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/policypack"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// Evaluate runs the Evidence & Policy stage against s using the pack
// currently active in loader.
func Evaluate(loader *policypack.Loader, s types.StructuredIntake, topK int) types.EvidenceOutput {
	return loader.Select(s, topK)
}
