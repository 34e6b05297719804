// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package structuring

// CatalogEntry maps one canonical token to the surface keywords that imply
// it. Declaration order is the stable ordering spec.md §4.1 requires for the
// normalized summary and for symptom/risk-factor lists.
type CatalogEntry struct {
	Token    string
	Keywords []string
}

// SymptomCatalog is the fixed symptom catalog (spec.md §4.1). Declaration
// order is catalog order.
var SymptomCatalog = []CatalogEntry{
	{Token: "chest_pain", Keywords: []string{
		"chest pain", "cp", "tightness in chest", "chest tightness",
		"crushing chest pain", "pressure in my chest", "chest pressure",
	}},
	{Token: "dyspnea", Keywords: []string{
		"sob", "shortness of breath", "dyspnea", "cannot catch breath",
		"can't catch my breath", "trouble breathing", "difficulty breathing",
	}},
	{Token: "palpitations", Keywords: []string{
		"palpitations", "heart racing", "racing heart", "heart pounding",
	}},
	{Token: "slurred_speech", Keywords: []string{
		"slurred speech", "speech is slurred", "talking funny",
	}},
	{Token: "facial_droop", Keywords: []string{
		"facial droop", "face drooping", "one side of face drooping",
	}},
	{Token: "unilateral_weakness", Keywords: []string{
		"one sided weakness", "arm weakness", "leg weakness", "right arm weakness",
		"left arm weakness", "weakness on one side", "right-sided weakness",
		"left-sided weakness",
	}},
	{Token: "aphasia", Keywords: []string{
		"cannot find words", "can't find the words", "trouble speaking",
		"word finding difficulty",
	}},
	{Token: "syncope", Keywords: []string{
		"syncope", "passed out", "fainted", "loss of consciousness",
	}},
	{Token: "altered_mental_status", Keywords: []string{
		"confusion", "confused", "altered mental status", "disoriented",
		"not making sense",
	}},
	{Token: "fever", Keywords: []string{
		"fever", "febrile", "high temperature", "chills",
	}},
	{Token: "hematemesis", Keywords: []string{
		"vomiting blood", "hematemesis", "blood in vomit",
	}},
	{Token: "melena", Keywords: []string{
		"black stool", "melena", "tarry stool", "bloody stool",
	}},
	{Token: "bleeding", Keywords: []string{
		"bleeding", "hemorrhage", "heavy bleeding",
	}},
	{Token: "abdominal_pain", Keywords: []string{
		"abdominal pain", "stomach pain", "belly pain",
	}},
	{Token: "headache", Keywords: []string{
		"headache", "head pain",
	}},
	{Token: "sore_throat", Keywords: []string{
		"sore throat", "throat pain", "throat is sore",
	}},
	{Token: "cough", Keywords: []string{
		"cough", "coughing",
	}},
}

// RiskFactorCatalog is the fixed risk-factor catalog (spec.md §4.1).
var RiskFactorCatalog = []CatalogEntry{
	{Token: "diabetes", Keywords: []string{
		"diabetes", "diabetic", "type 2 diabetes", "type 1 diabetes",
	}},
	{Token: "hypertension", Keywords: []string{
		"hypertension", "high blood pressure",
	}},
	{Token: "pregnancy", Keywords: []string{
		"pregnant", "pregnancy", "weeks gestation",
	}},
	{Token: "anticoagulation", Keywords: []string{
		"on blood thinners", "warfarin", "anticoagulant", "apixaban",
		"eliquis", "xarelto",
	}},
	{Token: "immunocompromise", Keywords: []string{
		"immunocompromised", "on chemotherapy", "chemo", "transplant recipient",
		"on immunosuppressants",
	}},
	{Token: "prior_mi", Keywords: []string{
		"prior heart attack", "previous mi", "history of mi", "prior myocardial infarction",
	}},
	{Token: "prior_stroke", Keywords: []string{
		"prior stroke", "history of stroke", "previous cva",
	}},
}

// NegationCues are the cue phrases that, within NegationWindow words
// immediately before a matched token, suppress that match (spec.md §4.1).
var NegationCues = []string{"no", "denies", "without", "negative for", "not"}

// VitalsRequiredSymptoms are the symptom tokens that, when present, mark
// HR/SBP/SpO2/Temp as critical if absent (spec.md §4.1: "any
// cardiopulmonary/sepsis/hemodynamic trigger requires HR+SBP+SpO2+Temp").
var VitalsRequiredSymptoms = map[string]bool{
	"chest_pain":    true,
	"dyspnea":       true,
	"palpitations":  true,
	"syncope":       true,
	"fever":         true,
	"hematemesis":   true,
	"melena":        true,
	"bleeding":      true,
}
