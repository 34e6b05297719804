// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package reasoning

import (
	"fmt"
	"strings"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// PromptVersion identifies the deterministic rule table's version, recorded
// on every ReasoningOutput regardless of which backend produced it.
const PromptVersion = "reasoning-rules-v1"

// differentialRule maps a feature predicate to a ranked differential.
// Declaration order is the tie-break order when multiple rules match
// (spec.md §4.2: "Ordering is stable (catalog then insertion)").
type differentialRule struct {
	name        string
	matches     func(f features) bool
	differential []string
}

type features struct {
	structured types.StructuredIntake
	shockIndex float64
	hasShockIndex bool
	shockIndexHigh bool
}

func computeFeatures(s types.StructuredIntake) features {
	f := features{structured: s}
	v := s.Vitals
	if v.HasHeartRate && v.HasSystolicBP && v.SystolicBP > 0 {
		f.shockIndex = round2(v.HeartRate / v.SystolicBP)
		f.hasShockIndex = true
		f.shockIndexHigh = f.shockIndex >= 0.9
	}
	return f
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func (f features) hypotensive() bool {
	v := f.structured.Vitals
	return v.HasSystolicBP && v.SystolicBP < 90
}

func (f features) hypoxemic(threshold float64) bool {
	v := f.structured.Vitals
	return v.HasSpO2 && v.SpO2 < threshold
}

var differentialRules = []differentialRule{
	{
		name: "acs_dissection_pe",
		matches: func(f features) bool {
			return f.structured.HasSymptom("chest_pain") && (f.hypotensive() || f.shockIndexHigh)
		},
		differential: []string{"Acute coronary syndrome", "Aortic dissection", "Pulmonary embolism"},
	},
	{
		name: "resp_failure",
		matches: func(f features) bool {
			return f.structured.HasSymptom("dyspnea") && f.hypoxemic(92)
		},
		differential: []string{"Acute hypoxemic respiratory failure", "Pulmonary embolism", "Pneumonia", "Heart failure"},
	},
	{
		name: "acs_plain",
		matches: func(f features) bool {
			return f.structured.HasSymptom("chest_pain")
		},
		differential: []string{"Acute coronary syndrome", "Musculoskeletal chest pain", "Gastroesophageal reflux"},
	},
	{
		name: "stroke",
		matches: func(f features) bool {
			s := f.structured
			return s.HasSymptom("slurred_speech") || s.HasSymptom("facial_droop") ||
				s.HasSymptom("unilateral_weakness") || s.HasSymptom("aphasia")
		},
		differential: []string{"Acute ischemic stroke", "Transient ischemic attack", "Hypoglycemia", "Complex migraine"},
	},
	{
		name: "sepsis",
		matches: func(f features) bool {
			s := f.structured
			return s.HasSymptom("fever") && s.HasSymptom("altered_mental_status")
		},
		differential: []string{"Sepsis", "Meningitis/encephalitis", "Urinary tract infection with delirium"},
	},
	{
		name: "gi_bleed",
		matches: func(f features) bool {
			s := f.structured
			return s.HasSymptom("hematemesis") || s.HasSymptom("melena")
		},
		differential: []string{"Upper gastrointestinal bleed", "Peptic ulcer disease", "Esophageal varices"},
	},
	{
		name: "syncope",
		matches: func(f features) bool {
			return f.structured.HasSymptom("syncope")
		},
		differential: []string{"Cardiac arrhythmia", "Orthostatic hypotension", "Vasovagal syncope"},
	},
	{
		name: "dyspnea_plain",
		matches: func(f features) bool {
			return f.structured.HasSymptom("dyspnea")
		},
		differential: []string{"Asthma/COPD exacerbation", "Heart failure", "Pneumonia"},
	},
	{
		name: "uri",
		matches: func(f features) bool {
			s := f.structured
			return s.HasSymptom("sore_throat") || s.HasSymptom("cough")
		},
		differential: []string{"Viral upper respiratory infection", "Streptococcal pharyngitis"},
	},
}

var fallbackDifferential = []string{"Nonspecific presentation requiring clinical evaluation"}

// Deterministic computes the rule-based differential and rationale. It is
// the always-available fallback and, when reasoning.backend=deterministic,
// the only implementation exercised.
func Deterministic(s types.StructuredIntake, imagesPresent int) types.ReasoningOutput {
	f := computeFeatures(s)

	var differential []string
	var matchedNames []string
	for _, rule := range differentialRules {
		if rule.matches(f) {
			differential = rule.differential
			matchedNames = append(matchedNames, rule.name)
			break
		}
	}
	if differential == nil {
		differential = fallbackDifferential
	}
	if len(differential) > 6 {
		differential = differential[:6]
	}

	return types.ReasoningOutput{
		DifferentialConsiderations: differential,
		ReasoningRationale:         buildRationale(s, f, matchedNames),
		ReasoningBackend:           types.BackendDeterministic,
		ReasoningPromptVersion:     PromptVersion,
		ImagesPresent:              imagesPresent,
		ImagesSent:                 0,
	}
}

func buildRationale(s types.StructuredIntake, f features, matchedRules []string) string {
	var b strings.Builder
	b.WriteString("Differential generated from a deterministic rule table over presenting symptoms")
	if len(s.Symptoms) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(s.Symptoms, ", "))
	}
	if len(s.RiskFactors) > 0 {
		fmt.Fprintf(&b, " and risk factors (%s)", strings.Join(s.RiskFactors, ", "))
	}
	if f.hasShockIndex {
		fmt.Fprintf(&b, "; shock index %.2f", f.shockIndex)
		if f.shockIndexHigh {
			b.WriteString(" (elevated)")
		}
	}
	b.WriteString(". This is a decision-support suggestion, not a diagnosis, and does not replace clinical judgment.")
	return b.String()
}
