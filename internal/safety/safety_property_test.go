// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package safety

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

var symptomTokens = []string{
	"chest_pain", "slurred_speech", "facial_droop", "unilateral_weakness",
	"aphasia", "hematemesis", "melena", "syncope", "dyspnea",
	"altered_mental_status",
}

// genVitals produces a Vitals combination across and beyond every trigger
// threshold in triggers.go (shock index, qSOFA, hypoxemia, hypotension,
// tachycardia, fever), each reading independently present or absent.
func genVitals() gopter.Gen {
	return gopter.CombineGens(
		gen.Float64Range(40, 220),  // heart rate
		gen.Bool(),                 // has heart rate
		gen.Float64Range(50, 200),  // systolic BP
		gen.Bool(),                 // has systolic BP
		gen.Float64Range(35, 105),  // SpO2 (allowed below 0 physiologically but we only need threshold coverage)
		gen.Bool(),                 // has SpO2
		gen.Float64Range(8, 40),    // respiratory rate
		gen.Bool(),                 // has respiratory rate
		gen.Float64Range(34, 42),   // temperature C
		gen.Bool(),                 // has temperature
	).Map(func(vals []interface{}) types.Vitals {
		return types.Vitals{
			HeartRate: vals[0].(float64), HasHeartRate: vals[1].(bool),
			SystolicBP: vals[2].(float64), HasSystolicBP: vals[3].(bool),
			SpO2: vals[4].(float64), HasSpO2: vals[5].(bool),
			RespiratoryRate: vals[6].(float64), HasRespiratoryRate: vals[7].(bool),
			TemperatureC: vals[8].(float64), HasTemperatureC: vals[9].(bool),
		}
	})
}

// genSymptoms picks an independent random subset of the canonical symptom
// catalog instead of a single token, so combinations that only escalate
// tier when several fire together (stroke FAST criteria, the hemodynamic
// combo rule) get exercised too.
func genSymptoms() gopter.Gen {
	boolGens := make([]gopter.Gen, len(symptomTokens))
	for i := range boolGens {
		boolGens[i] = gen.Bool()
	}
	return gopter.CombineGens(boolGens...).Map(func(picks []interface{}) []string {
		var out []string
		for i, pick := range picks {
			if pick.(bool) {
				out = append(out, symptomTokens[i])
			}
		}
		return out
	})
}

func genStructuredIntake() gopter.Gen {
	return gopter.CombineGens(genSymptoms(), genVitals()).Map(func(vals []interface{}) types.StructuredIntake {
		return types.StructuredIntake{
			Symptoms: vals[0].([]string),
			Vitals:   vals[1].(types.Vitals),
		}
	})
}

// TestPropertySafetyDominance is spec.md §8's safety dominance invariant: no
// generated structured intake (evaluated with an empty reasoning output) can
// leave the risk tier at routine while a critical or urgent trigger fired, and escalation
// is required exactly when the tier departs from routine.
func TestPropertySafetyDominance(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a fired critical/urgent trigger forbids a routine tier", prop.ForAll(
		func(s types.StructuredIntake) bool {
			out, _ := Evaluate(s, types.ReasoningOutput{}, nil)

			hasCriticalOrUrgent := false
			for _, trig := range out.SafetyTriggers {
				if trig.Severity == types.SeverityCritical || trig.Severity == types.SeverityUrgent {
					hasCriticalOrUrgent = true
					break
				}
			}

			if hasCriticalOrUrgent && out.RiskTier == types.TierRoutine {
				return false
			}

			return out.EscalationRequired == (out.RiskTier != types.TierRoutine)
		},
		genStructuredIntake(),
	))

	properties.Property("a critical trigger always yields the critical tier", prop.ForAll(
		func(s types.StructuredIntake) bool {
			out, _ := Evaluate(s, types.ReasoningOutput{}, nil)

			hasCritical := false
			for _, trig := range out.SafetyTriggers {
				if trig.Severity == types.SeverityCritical {
					hasCritical = true
					break
				}
			}

			if hasCritical {
				return out.RiskTier == types.TierCritical
			}
			return true
		},
		genStructuredIntake(),
	))

	properties.Property("mandated actions injected by safety are never duplicated and always lead priorActions", prop.ForAll(
		func(s types.StructuredIntake, priorActions []string) bool {
			out, actions := Evaluate(s, types.ReasoningOutput{}, priorActions)

			seen := make(map[string]bool, len(actions))
			for _, a := range actions {
				if seen[a] {
					return false
				}
				seen[a] = true
			}

			if len(out.ActionsAddedBySafety) > len(actions) {
				return false
			}
			for i, a := range out.ActionsAddedBySafety {
				if actions[i] != a {
					return false
				}
			}
			return true
		},
		genStructuredIntake(),
		gen.SliceOf(gen.OneConstOf("Start IV fluids", "Obtain 12-lead ECG and continuous cardiac monitoring", "Observe")),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
