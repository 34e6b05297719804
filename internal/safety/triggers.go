// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package safety

import (
	"fmt"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// RulesVersion identifies this file's canonical trigger set. Bump it
// whenever a trigger's precondition, severity, or mandated actions change —
// spec.md §4.4's determinism invariant is scoped to one version.
const RulesVersion = "safety-rules-v1"

// trigger is one fired, categorized evaluation of the canonical trigger set
// (spec.md §4.4). category groups triggers for the multi_category escalation
// rule; it is not part of the public SafetyTrigger shape.
type trigger struct {
	types.SafetyTrigger
	category        string
	mandatedActions []string
}

// features are the derived clinical signals every trigger and risk score is
// computed from.
type features struct {
	s types.StructuredIntake

	shockIndex     float64
	hasShockIndex  bool
	shockIndexHigh bool

	qsofa         int
	qsofaHighRisk bool
}

func computeFeatures(s types.StructuredIntake) features {
	f := features{s: s}
	v := s.Vitals

	if v.HasHeartRate && v.HasSystolicBP && v.SystolicBP > 0 {
		f.shockIndex = round2(v.HeartRate / v.SystolicBP)
		f.hasShockIndex = true
		f.shockIndexHigh = f.shockIndex >= 0.9
	}

	if v.HasRespiratoryRate && v.RespiratoryRate >= 22 {
		f.qsofa++
	}
	if v.HasSystolicBP && v.SystolicBP <= 100 {
		f.qsofa++
	}
	if s.HasSymptom("altered_mental_status") {
		f.qsofa++
	}
	f.qsofaHighRisk = f.qsofa >= 2

	return f
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// evaluateTriggers runs the canonical trigger set (spec.md §4.4) in
// declaration order, applying the two severity-escalation rules that depend
// on more than one trigger's outcome: fever_sepsis escalating when combined
// with tachycardia_severe, and the cross-cutting multi_category /
// shock-index escalations applied at the end of this function.
func evaluateTriggers(f features) []trigger {
	s := f.s
	v := s.Vitals
	var fired []trigger

	if s.HasSymptom("chest_pain") {
		fired = append(fired, trigger{
			SafetyTrigger: types.SafetyTrigger{
				ID: "cardiopulmonary_red_flag", Label: "Chest pain reported",
				Severity: types.SeverityUrgent, Detail: "Chief complaint or history includes chest pain.",
			},
			category: "cardiopulmonary",
			mandatedActions: []string{"Obtain 12-lead ECG and continuous cardiac monitoring", "Establish IV access"},
		})
	}

	if strokeCount := countTrue(
		s.HasSymptom("slurred_speech"), s.HasSymptom("facial_droop"),
		s.HasSymptom("unilateral_weakness"), s.HasSymptom("aphasia"),
	); strokeCount > 0 {
		severity := types.SeverityUrgent
		if strokeCount >= 2 {
			severity = types.SeverityCritical
		}
		fired = append(fired, trigger{
			SafetyTrigger: types.SafetyTrigger{
				ID: "stroke_red_flag", Label: "Stroke warning signs",
				Severity: severity,
				Detail:   fmt.Sprintf("%d stroke warning sign(s) present (FAST criteria).", strokeCount),
			},
			category: "neuro",
			mandatedActions: []string{"Document exact time of symptom onset", "Activate emergent neurology evaluation"},
		})
	}

	if v.HasSpO2 {
		switch {
		case v.SpO2 < 88:
			fired = append(fired, trigger{
				SafetyTrigger: types.SafetyTrigger{
					ID: "hypoxemia", Label: "Severe hypoxemia", Severity: types.SeverityCritical,
					Detail: fmt.Sprintf("SpO2 %.0f%% is below the critical threshold of 88%%.", v.SpO2),
				},
				category:        "respiratory",
				mandatedActions: []string{"Apply supplemental oxygen immediately", "Continuous pulse oximetry monitoring"},
			})
		case v.SpO2 < 92:
			fired = append(fired, trigger{
				SafetyTrigger: types.SafetyTrigger{
					ID: "hypoxemia", Label: "Hypoxemia", Severity: types.SeverityUrgent,
					Detail: fmt.Sprintf("SpO2 %.0f%% is below the 92%% threshold.", v.SpO2),
				},
				category:        "respiratory",
				mandatedActions: []string{"Apply supplemental oxygen and reassess"},
			})
		}
	}

	if v.HasSystolicBP && v.SystolicBP < 90 {
		fired = append(fired, trigger{
			SafetyTrigger: types.SafetyTrigger{
				ID: "hypotension", Label: "Hypotension", Severity: types.SeverityCritical,
				Detail: fmt.Sprintf("Systolic BP %.0f is below 90 mmHg.", v.SystolicBP),
			},
			category:        "hemodynamic",
			mandatedActions: []string{"Establish IV access and begin fluid resuscitation", "Continuous blood pressure monitoring"},
		})
	}

	tachycardia := v.HasHeartRate && v.HeartRate >= 130
	if tachycardia {
		fired = append(fired, trigger{
			SafetyTrigger: types.SafetyTrigger{
				ID: "tachycardia_severe", Label: "Severe tachycardia", Severity: types.SeverityUrgent,
				Detail: fmt.Sprintf("Heart rate %.0f is at or above 130 bpm.", v.HeartRate),
			},
			category:        "cardiac_rhythm",
			mandatedActions: []string{"Continuous cardiac monitoring and 12-lead ECG"},
		})
	}

	if v.HasTemperatureC && v.TemperatureC >= 39.5 {
		severity := types.SeverityUrgent
		detail := fmt.Sprintf("Temperature %.1fC is at or above 39.5C.", v.TemperatureC)
		if tachycardia {
			severity = types.SeverityCritical
			detail += " Combined with severe tachycardia."
		}
		fired = append(fired, trigger{
			SafetyTrigger: types.SafetyTrigger{
				ID: "fever_sepsis", Label: "Fever with sepsis concern", Severity: severity, Detail: detail,
			},
			category:        "infectious",
			mandatedActions: []string{"Draw blood cultures before antibiotics", "Start broad-spectrum antibiotics within 1 hour"},
		})
	}

	if v.HasSpO2 && v.SpO2 < 92 && s.HasSymptom("chest_pain") {
		fired = append(fired, trigger{
			SafetyTrigger: types.SafetyTrigger{
				ID: "hemodynamic_combo", Label: "Hypoxemia with chest pain", Severity: types.SeverityCritical,
				Detail: "Hypoxemia (SpO2 < 92%) combined with chest pain.",
			},
			category:        "combo",
			mandatedActions: []string{"Emergent cardiopulmonary evaluation", "Prepare for advanced airway support if deteriorating"},
		})
	}

	if s.HasRiskFactor("pregnancy") && (s.HasSymptom("bleeding") || s.HasSymptom("hematemesis") || s.HasSymptom("melena")) {
		fired = append(fired, trigger{
			SafetyTrigger: types.SafetyTrigger{
				ID: "pregnancy_bleeding", Label: "Bleeding in pregnancy", Severity: types.SeverityUrgent,
				Detail: "Pregnancy risk factor combined with a bleeding symptom.",
			},
			category:        "obstetric",
			mandatedActions: []string{"Urgent obstetric evaluation", "Type and cross-match for possible transfusion"},
		})
	}

	if s.HasSymptom("hematemesis") || s.HasSymptom("melena") {
		fired = append(fired, trigger{
			SafetyTrigger: types.SafetyTrigger{
				ID: "gi_bleed", Label: "Gastrointestinal bleed", Severity: types.SeverityUrgent,
				Detail: "Hematemesis or melena reported.",
			},
			category:        "gastrointestinal",
			mandatedActions: []string{"Type and cross-match for transfusion", "Consult gastroenterology for urgent endoscopy"},
		})
	}

	if s.HasSymptom("syncope") {
		fired = append(fired, trigger{
			SafetyTrigger: types.SafetyTrigger{
				ID: "syncope", Label: "Syncope", Severity: types.SeverityUrgent,
				Detail: "Loss of consciousness reported.",
			},
			category:        "neuro_other",
			mandatedActions: []string{"Continuous cardiac monitoring", "Orthostatic vital signs"},
		})
	}

	fired = applyMultiCategoryEscalation(fired)

	if f.qsofaHighRisk {
		fired = append(fired, trigger{
			SafetyTrigger: types.SafetyTrigger{
				ID: "qsofa_high_risk", Label: "qSOFA high risk", Severity: types.SeverityInfo,
				Detail: fmt.Sprintf("qSOFA score %d meets the high-risk threshold of 2.", f.qsofa),
			},
			category: "score",
		})
	}

	if f.shockIndexHigh {
		anyUrgentOrCritical := false
		for _, t := range fired {
			if t.Severity == types.SeverityUrgent || t.Severity == types.SeverityCritical {
				anyUrgentOrCritical = true
				break
			}
		}
		severity := types.SeverityInfo
		detail := fmt.Sprintf("Shock index %.2f is elevated (>= 0.9).", f.shockIndex)
		if anyUrgentOrCritical {
			severity = types.SeverityCritical
			detail += " Combined with another urgent/critical trigger."
		}
		fired = append(fired, trigger{
			SafetyTrigger: types.SafetyTrigger{
				ID: "shock_index_high", Label: "Elevated shock index", Severity: severity, Detail: detail,
			},
			category: "score",
		})
	}

	return fired
}

// applyMultiCategoryEscalation implements spec.md §4.4's multi_category
// rule: when two or more distinct categories have fired an urgent or
// critical trigger, every urgent trigger escalates one step to critical.
func applyMultiCategoryEscalation(fired []trigger) []trigger {
	categories := make(map[string]bool)
	for _, t := range fired {
		if t.Severity == types.SeverityUrgent || t.Severity == types.SeverityCritical {
			categories[t.category] = true
		}
	}
	if len(categories) < 2 {
		return fired
	}

	for i := range fired {
		if fired[i].Severity == types.SeverityUrgent {
			fired[i].Severity = types.SeverityCritical
			fired[i].Detail += " Escalated: multiple distinct red-flag categories present."
		}
	}
	fired = append(fired, trigger{
		SafetyTrigger: types.SafetyTrigger{
			ID: "multi_category", Label: "Multiple red-flag categories", Severity: types.SeverityInfo,
			Detail: fmt.Sprintf("%d distinct red-flag categories fired; urgent triggers escalated to critical.", len(categories)),
		},
		category: "score",
	})
	return fired
}

func countTrue(vals ...bool) int {
	n := 0
	for _, v := range vals {
		if v {
			n++
		}
	}
	return n
}
