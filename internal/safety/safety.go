// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package safety implements the Safety & Escalation stage (spec.md §4.4):
// deterministic red-flag detection, risk-tier assignment, mandatory action
// injection, and interpretable risk scores. Unlike every other stage, it is
// never skipped and never degrades — Evaluate has no failure path.
package safety

import (
	"fmt"
	"strings"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// redFlagPhrases maps a fired symptom token to the human-readable red-flag
// string spec.md §4.4 calls the "keyword→red_flag mapping". Order of
// red_flags in the output follows StructuredIntake.Symptoms order, which is
// itself catalog order (internal/structuring).
var redFlagPhrases = map[string]string{
	"chest_pain":            "Chest pain",
	"dyspnea":               "Shortness of breath",
	"slurred_speech":        "Slurred speech",
	"facial_droop":          "Facial droop",
	"unilateral_weakness":   "One-sided weakness",
	"aphasia":               "Difficulty finding words",
	"syncope":               "Loss of consciousness",
	"hematemesis":           "Vomiting blood",
	"melena":                "Black, tarry stool",
	"altered_mental_status": "Confusion or altered mental status",
}

// Evaluate runs the full Safety & Escalation stage: trigger evaluation, risk
// scoring, tier decision, action injection, and uncertainty reasons.
// priorActions is Evidence's recommended_actions_from_policy, in order.
// Evaluate returns the stage output plus the final recommended_next_actions
// list (mandated actions injected ahead of priorActions, deduplicated) since
// that list is a TriageResult-level field, not part of SafetyOutput itself.
func Evaluate(s types.StructuredIntake, reasoning types.ReasoningOutput, priorActions []string) (types.SafetyOutput, []string) {
	f := computeFeatures(s)
	fired := evaluateTriggers(f)

	tier := decideTier(fired)
	actions, addedBySafety := injectActions(fired, priorActions)

	out := types.SafetyOutput{
		RiskTier:             tier,
		EscalationRequired:   tier != types.TierRoutine,
		RedFlags:             redFlags(s),
		SafetyTriggers:       exportTriggers(fired),
		ActionsAddedBySafety: addedBySafety,
		RiskTierRationale:    rationale(tier, fired),
		RiskScores: types.RiskScores{
			ShockIndex:     f.shockIndex,
			HasShockIndex:  f.hasShockIndex,
			ShockIndexHigh: f.shockIndexHigh,
			QSOFA:          f.qsofa,
			QSOFAHighRisk:  f.qsofaHighRisk,
		},
		UncertaintyReasons: uncertaintyReasons(s, reasoning, fired, f),
		SafetyRulesVersion: RulesVersion,
	}
	return out, actions
}

func decideTier(fired []trigger) types.RiskTier {
	for _, t := range fired {
		if t.Severity == types.SeverityCritical {
			return types.TierCritical
		}
	}
	for _, t := range fired {
		if t.Severity == types.SeverityUrgent {
			return types.TierUrgent
		}
	}
	return types.TierRoutine
}

// injectActions prepends each fired critical/urgent trigger's mandated
// actions (in trigger order) to priorActions, then deduplicates with first
// occurrence winning (spec.md §4.4).
func injectActions(fired []trigger, priorActions []string) (actions []string, addedBySafety []string) {
	seen := make(map[string]bool)

	for _, t := range fired {
		if t.Severity != types.SeverityCritical && t.Severity != types.SeverityUrgent {
			continue
		}
		for _, a := range t.mandatedActions {
			if !seen[a] {
				seen[a] = true
				actions = append(actions, a)
				addedBySafety = append(addedBySafety, a)
			}
		}
	}

	for _, a := range priorActions {
		if !seen[a] {
			seen[a] = true
			actions = append(actions, a)
		}
	}

	return actions, addedBySafety
}

func redFlags(s types.StructuredIntake) []string {
	var out []string
	for _, tok := range s.Symptoms {
		if phrase, ok := redFlagPhrases[tok]; ok {
			out = append(out, phrase)
		}
	}
	return out
}

func exportTriggers(fired []trigger) []types.SafetyTrigger {
	out := make([]types.SafetyTrigger, 0, len(fired))
	for _, t := range fired {
		out = append(out, t.SafetyTrigger)
	}
	return out
}

func rationale(tier types.RiskTier, fired []trigger) string {
	var dominant []string
	for _, t := range fired {
		if t.Severity == types.SeverityCritical {
			dominant = append(dominant, t.Label)
		}
	}
	if tier == types.TierUrgent {
		for _, t := range fired {
			if t.Severity == types.SeverityUrgent {
				dominant = append(dominant, t.Label)
			}
		}
	}

	switch {
	case len(dominant) > 0:
		return fmt.Sprintf("Risk tier %s driven by: %s.", tier, strings.Join(dominant, ", "))
	default:
		return "No critical or urgent safety triggers fired; presentation assessed as routine."
	}
}

func uncertaintyReasons(s types.StructuredIntake, reasoning types.ReasoningOutput, fired []trigger, f features) []string {
	var reasons []string

	for _, missing := range s.MissingCriticalFields {
		if strings.HasPrefix(missing, "vitals.") {
			reasons = append(reasons, "missing vitals required for this presentation: "+missing)
		}
	}

	if s.HasSymptom("chest_pain") && !s.Vitals.HasHeartRate {
		reasons = append(reasons, "chest pain reported without accompanying vitals")
	}

	if reasoning.ReasoningBackendError != "" {
		reasons = append(reasons, "external reasoning backend errored: "+reasoning.ReasoningBackendError)
	}
	if reasoning.ReasoningBackendSkippedReason != "" {
		reasons = append(reasons, "external reasoning backend skipped: "+reasoning.ReasoningBackendSkippedReason)
	}

	if f.shockIndexHigh {
		anyCritical := false
		for _, t := range fired {
			if t.Severity == types.SeverityCritical && t.ID != "shock_index_high" {
				anyCritical = true
				break
			}
		}
		if !anyCritical {
			reasons = append(reasons, "elevated shock index without another critical trigger")
		}
	}

	return reasons
}
