// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

func TestConfidenceFullCoverageRoutineCapsAtTierCeiling(t *testing.T) {
	s := types.StructuredIntake{}
	safetyOut := types.SafetyOutput{RiskTier: types.TierRoutine}
	c := confidence(s, safetyOut, types.ReasoningOutput{})
	assert.LessOrEqual(t, c, tierCap[types.TierRoutine])
	assert.Equal(t, tierCap[types.TierRoutine], c)
}

func TestConfidenceMissingFieldsLowerScore(t *testing.T) {
	clean := confidence(types.StructuredIntake{}, types.SafetyOutput{RiskTier: types.TierRoutine}, types.ReasoningOutput{})
	degraded := confidence(
		types.StructuredIntake{MissingCriticalFields: []string{"vitals.heart_rate", "vitals.spo2"}},
		types.SafetyOutput{RiskTier: types.TierRoutine},
		types.ReasoningOutput{},
	)
	assert.Less(t, degraded, clean)
}

func TestConfidenceNeverGoesBelowFloor(t *testing.T) {
	s := types.StructuredIntake{
		MissingCriticalFields: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"},
		DataQualityWarnings:   []string{"w1", "w2", "w3", "w4", "w5"},
	}
	c := confidence(s, types.SafetyOutput{RiskTier: types.TierRoutine}, types.ReasoningOutput{})
	assert.GreaterOrEqual(t, c, confidenceFloor)
}

func TestConfidenceCriticalTierAllowsHigherCeilingThanRoutine(t *testing.T) {
	s := types.StructuredIntake{MissingCriticalFields: []string{"vitals.heart_rate"}}
	safetyOut := types.SafetyOutput{
		RiskTier:       types.TierCritical,
		SafetyTriggers: []types.SafetyTrigger{{ID: "hypotension", Severity: types.SeverityCritical}},
	}
	c := confidence(s, safetyOut, types.ReasoningOutput{})
	assert.LessOrEqual(t, c, tierCap[types.TierCritical])
	assert.Greater(t, c, tierCap[types.TierRoutine])
}

func TestConfidenceFiredTriggersPullScoreTowardCeiling(t *testing.T) {
	s := types.StructuredIntake{MissingCriticalFields: []string{"vitals.heart_rate", "vitals.spo2"}}
	withoutTriggers := confidence(s, types.SafetyOutput{RiskTier: types.TierUrgent}, types.ReasoningOutput{})
	withTriggers := confidence(s, types.SafetyOutput{
		RiskTier:       types.TierUrgent,
		SafetyTriggers: []types.SafetyTrigger{{ID: "tachycardia_severe", Severity: types.SeverityUrgent}},
	}, types.ReasoningOutput{})
	assert.Greater(t, withTriggers, withoutTriggers)
}

func TestConfidenceReasoningBackendErrorLowersScore(t *testing.T) {
	s := types.StructuredIntake{MissingCriticalFields: []string{"a", "b", "c"}}
	clean := confidence(s, types.SafetyOutput{RiskTier: types.TierCritical}, types.ReasoningOutput{})
	degraded := confidence(s, types.SafetyOutput{RiskTier: types.TierCritical}, types.ReasoningOutput{ReasoningBackendError: "unavailable"})
	assert.Less(t, degraded, clean)
}
