// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package safety

import (
	"github.com/goccy/go-json"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/policypack"
)

// descriptor is a read-only, versioned description of the canonical trigger
// set (spec.md §4.6: the rulebook is "an internal artifact but exposed
// read-only... as a versioned JSON with identical canonicalization rules").
// It mirrors triggers.go's hardcoded evaluation logic for audit purposes;
// unlike the policy pack, trigger evaluation itself is not data-driven from
// this descriptor because several triggers (stroke_red_flag's count-based
// severity, the multi_category cross-trigger escalation) depend on the
// outcome of other triggers, which a single independent per-trigger
// predicate cannot express.
type descriptor struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Severity string   `json:"severity"`
	Detail   string   `json:"detail"`
	Actions  []string `json:"mandated_actions"`
}

type rulebookDoc struct {
	Version    string       `json:"version"`
	Triggers   []descriptor `json:"triggers"`
}

var rulebookDescriptors = []descriptor{
	{ID: "cardiopulmonary_red_flag", Label: "Chest pain reported", Severity: "urgent", Detail: "Chief complaint or history includes chest pain.", Actions: []string{"Obtain 12-lead ECG and continuous cardiac monitoring", "Establish IV access"}},
	{ID: "stroke_red_flag", Label: "Stroke warning signs", Severity: "urgent (critical if >=2 signs)", Detail: "Any of slurred speech, facial droop, unilateral weakness, aphasia.", Actions: []string{"Document exact time of symptom onset", "Activate emergent neurology evaluation"}},
	{ID: "hypoxemia", Label: "Hypoxemia", Severity: "urgent (critical if spo2<88)", Detail: "SpO2 below 92%.", Actions: []string{"Apply supplemental oxygen and reassess"}},
	{ID: "hypotension", Label: "Hypotension", Severity: "critical", Detail: "Systolic BP below 90 mmHg.", Actions: []string{"Establish IV access and begin fluid resuscitation", "Continuous blood pressure monitoring"}},
	{ID: "tachycardia_severe", Label: "Severe tachycardia", Severity: "urgent", Detail: "Heart rate at or above 130 bpm.", Actions: []string{"Continuous cardiac monitoring and 12-lead ECG"}},
	{ID: "fever_sepsis", Label: "Fever with sepsis concern", Severity: "urgent (critical if combined with tachycardia)", Detail: "Temperature at or above 39.5C.", Actions: []string{"Draw blood cultures before antibiotics", "Start broad-spectrum antibiotics within 1 hour"}},
	{ID: "hemodynamic_combo", Label: "Hypoxemia with chest pain", Severity: "critical", Detail: "SpO2<92 and chest pain.", Actions: []string{"Emergent cardiopulmonary evaluation", "Prepare for advanced airway support if deteriorating"}},
	{ID: "pregnancy_bleeding", Label: "Bleeding in pregnancy", Severity: "urgent", Detail: "Pregnancy risk factor with a bleeding symptom.", Actions: []string{"Urgent obstetric evaluation", "Type and cross-match for possible transfusion"}},
	{ID: "gi_bleed", Label: "Gastrointestinal bleed", Severity: "urgent", Detail: "Hematemesis or melena reported.", Actions: []string{"Type and cross-match for transfusion", "Consult gastroenterology for urgent endoscopy"}},
	{ID: "syncope", Label: "Syncope", Severity: "urgent", Detail: "Loss of consciousness reported.", Actions: []string{"Continuous cardiac monitoring", "Orthostatic vital signs"}},
	{ID: "multi_category", Label: "Multiple red-flag categories", Severity: "info (escalates other urgent triggers to critical)", Detail: "Two or more distinct red-flag categories fired."},
	{ID: "qsofa_high_risk", Label: "qSOFA high risk", Severity: "info", Detail: "qSOFA score >= 2."},
	{ID: "shock_index_high", Label: "Elevated shock index", Severity: "info (critical if combined with an urgent/critical trigger)", Detail: "Shock index >= 0.9."},
}

// CanonicalJSON returns the rulebook descriptor's canonical JSON bytes and
// SHA-256 hex digest, using the same canonicalization rule as the policy
// pack (spec.md §4.6).
func CanonicalJSON() (digest string, canonical []byte, err error) {
	raw, err := json.Marshal(rulebookDoc{Version: RulesVersion, Triggers: rulebookDescriptors})
	if err != nil {
		return "", nil, err
	}
	return policypack.CanonicalHash(raw)
}
