// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package orchestrator

import "github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"

const (
	missingFieldPenalty = 0.10
	warningPenalty      = 0.05
	confidenceFloor     = 0.3
)

// tierCap is the tier-dependent ceiling spec.md §4.6 step 4 names.
var tierCap = map[types.RiskTier]float64{
	types.TierRoutine:  0.85,
	types.TierUrgent:   0.90,
	types.TierCritical: 0.95,
}

// confidence implements the pinned formula from DESIGN.md's Open Question
// decision: start from a coverage baseline of 1.0, subtract a penalty per
// missing critical field and per data-quality warning (plus one warning's
// worth of penalty if the external reasoning backend errored), floor at
// confidenceFloor, then apply the tier-dependent cap. A fired safety
// trigger is a clear deterministic signal, so it pulls the score up toward
// the cap rather than leaving it pinned to the coverage penalty alone.
func confidence(s types.StructuredIntake, safetyOut types.SafetyOutput, reasoningOut types.ReasoningOutput) float64 {
	c := 1.0
	c -= float64(len(s.MissingCriticalFields)) * missingFieldPenalty
	c -= float64(len(s.DataQualityWarnings)) * warningPenalty
	if reasoningOut.ReasoningBackendError != "" {
		c -= warningPenalty
	}
	if c < confidenceFloor {
		c = confidenceFloor
	}

	ceiling := tierCap[safetyOut.RiskTier]
	if len(safetyOut.SafetyTriggers) > 0 && c < ceiling {
		c = ceiling - (ceiling-c)*0.5
	}
	if c > ceiling {
		c = ceiling
	}

	return round2(c)
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
