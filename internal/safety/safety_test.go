// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

func vitals(hr, sbp, spo2, rr, tempC float64) types.Vitals {
	return types.Vitals{
		HasHeartRate: true, HeartRate: hr,
		HasSystolicBP: true, SystolicBP: sbp,
		HasSpO2: true, SpO2: spo2,
		HasRespiratoryRate: true, RespiratoryRate: rr,
		HasTemperatureC: true, TemperatureC: tempC,
	}
}

// Scenario 1 (spec.md §8): critical chest pain + hypotension.
func TestCriticalChestPainWithHypotension(t *testing.T) {
	s := types.StructuredIntake{
		Symptoms: []string{"chest_pain"},
		Vitals:   vitals(128, 82, 94, 22, 37.0),
	}

	out, actions := Evaluate(s, types.ReasoningOutput{}, nil)

	assert.Equal(t, types.TierCritical, out.RiskTier)
	assert.True(t, out.EscalationRequired)
	assert.InDelta(t, 1.56, out.RiskScores.ShockIndex, 0.01)
	assert.True(t, out.RiskScores.ShockIndexHigh)

	var ids []string
	for _, trig := range out.SafetyTriggers {
		ids = append(ids, trig.ID)
	}
	assert.Contains(t, ids, "hypotension")
	assert.Contains(t, ids, "cardiopulmonary_red_flag")
	require.NotEmpty(t, actions)
	assert.Contains(t, actions[0], "ECG")
}

// Scenario 2 (spec.md §8): stroke signs.
func TestStrokeSigns(t *testing.T) {
	s := types.StructuredIntake{Symptoms: []string{"slurred_speech", "unilateral_weakness"}}

	out, actions := Evaluate(s, types.ReasoningOutput{}, nil)

	var ids []string
	for _, trig := range out.SafetyTriggers {
		ids = append(ids, trig.ID)
	}
	assert.Contains(t, ids, "stroke_red_flag")
	assert.Equal(t, types.TierCritical, out.RiskTier, "two stroke warning signs escalate to critical")
	assert.Contains(t, actions, "Document exact time of symptom onset")
}

// Scenario 3 (spec.md §8): routine sore throat.
func TestRoutineSoreThroat(t *testing.T) {
	s := types.StructuredIntake{
		Symptoms: []string{"sore_throat"},
		Vitals:   vitals(78, 120, 99, 14, 37.4),
	}

	out, _ := Evaluate(s, types.ReasoningOutput{}, nil)

	assert.Equal(t, types.TierRoutine, out.RiskTier)
	assert.False(t, out.EscalationRequired)
	for _, trig := range out.SafetyTriggers {
		assert.NotEqual(t, types.SeverityCritical, trig.Severity)
		assert.NotEqual(t, types.SeverityUrgent, trig.Severity)
	}
}

// Scenario 4 (spec.md §8): sepsis-like presentation.
func TestSepsisLikePresentation(t *testing.T) {
	s := types.StructuredIntake{
		Symptoms: []string{"fever", "altered_mental_status"},
		Vitals:   vitals(132, 96, 95, 24, 39.7),
	}

	out, _ := Evaluate(s, types.ReasoningOutput{}, nil)

	assert.Equal(t, 3, out.RiskScores.QSOFA)
	assert.True(t, out.RiskScores.QSOFAHighRisk)

	var ids []string
	for _, trig := range out.SafetyTriggers {
		ids = append(ids, trig.ID)
	}
	assert.Contains(t, ids, "fever_sepsis")
	assert.Contains(t, ids, "tachycardia_severe")
	assert.Equal(t, types.TierCritical, out.RiskTier)
}

func TestActionsAddedBySafetyIsSubsetOfRecommendedNextActions(t *testing.T) {
	s := types.StructuredIntake{Symptoms: []string{"chest_pain"}, Vitals: vitals(128, 82, 94, 22, 37.0)}
	out, actions := Evaluate(s, types.ReasoningOutput{}, []string{"Obtain 12-lead ECG within 10 minutes", "Some other policy action"})

	actionSet := make(map[string]bool)
	for _, a := range actions {
		actionSet[a] = true
	}
	for _, a := range out.ActionsAddedBySafety {
		assert.True(t, actionSet[a])
	}

	seen := make(map[string]bool)
	for _, a := range actions {
		assert.False(t, seen[a], "recommended_next_actions must be duplicate-free")
		seen[a] = true
	}
}

func TestSafetyDominanceCannotBeRoutineWithCriticalTrigger(t *testing.T) {
	s := types.StructuredIntake{Vitals: types.Vitals{HasSystolicBP: true, SystolicBP: 85}}
	out, _ := Evaluate(s, types.ReasoningOutput{}, nil)
	assert.NotEqual(t, types.TierRoutine, out.RiskTier)
}

func TestUncertaintyReasonsIncludesExternalBackendError(t *testing.T) {
	s := types.StructuredIntake{}
	out, _ := Evaluate(s, types.ReasoningOutput{ReasoningBackendError: "invalid_json"}, nil)
	found := false
	for _, r := range out.UncertaintyReasons {
		if r == "external reasoning backend errored: invalid_json" {
			found = true
		}
	}
	assert.True(t, found)
}
