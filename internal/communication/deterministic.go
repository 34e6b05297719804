// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package communication implements the Communication stage (spec.md §4.5):
// a deterministic SBAR clinician handoff and plain-language patient
// precautions, with an optional rewrite-only external pass that can never
// add clinical facts.
package communication

import (
	"fmt"
	"strings"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// PromptVersion identifies the deterministic template's version.
const PromptVersion = "communication-sbar-v1"

// sectionHeaders is the fixed, ordered SBAR section set spec.md §4.5 and
// §9 require the rewrite validator to preserve.
var sectionHeaders = []string{"Situation", "Background", "Assessment", "Recommendation"}

// Draft builds the deterministic clinician handoff and patient summary.
// actions is the final recommended_next_actions list (safety-injected
// actions already prepended).
func Draft(s types.StructuredIntake, safetyOut types.SafetyOutput, actions []string) types.CommunicationOutput {
	return types.CommunicationOutput{
		ClinicianHandoff:           buildHandoff(s, safetyOut, actions),
		PatientSummary:             buildPatientSummary(safetyOut),
		CommunicationBackend:       types.BackendDeterministic,
		CommunicationPromptVersion: PromptVersion,
	}
}

func buildHandoff(s types.StructuredIntake, safetyOut types.SafetyOutput, actions []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Situation: %s (risk tier: %s).\n", strings.TrimSpace(s.ChiefComplaint), safetyOut.RiskTier)

	b.WriteString("Background: ")
	var bgParts []string
	if vitals := formatKeyVitals(s.Vitals); vitals != "" {
		bgParts = append(bgParts, "Vitals: "+vitals)
	}
	if len(s.Symptoms) > 0 {
		bgParts = append(bgParts, "Symptoms: "+strings.Join(s.Symptoms, ", "))
	}
	if len(s.RiskFactors) > 0 {
		bgParts = append(bgParts, "Risk factors: "+strings.Join(s.RiskFactors, ", "))
	}
	if len(bgParts) == 0 {
		bgParts = append(bgParts, "No additional history documented.")
	}
	b.WriteString(strings.Join(bgParts, " "))
	b.WriteString("\n")

	fmt.Fprintf(&b, "Assessment: %s", safetyOut.RiskTierRationale)
	if len(safetyOut.RedFlags) > 0 {
		fmt.Fprintf(&b, " Red flags: %s.", strings.Join(topN(safetyOut.RedFlags, 5), ", "))
	}
	b.WriteString("\n")

	b.WriteString("Recommendation: ")
	top := topN(actions, 3)
	if len(top) == 0 {
		b.WriteString("No specific protocolized actions indicated; use clinical judgment.")
	} else {
		for i, a := range top {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%d) %s", i+1, a)
		}
	}

	return b.String()
}

func buildPatientSummary(safetyOut types.SafetyOutput) string {
	var b strings.Builder

	switch safetyOut.RiskTier {
	case types.TierCritical, types.TierUrgent:
		b.WriteString("Seek emergency care immediately if you notice any of the following: ")
	default:
		b.WriteString("Return to clinic if you notice any of the following: ")
	}

	if len(safetyOut.RedFlags) > 0 {
		b.WriteString(strings.Join(lowercaseAll(topN(safetyOut.RedFlags, 5)), ", "))
		b.WriteString(", or if your symptoms worsen.")
	} else {
		b.WriteString("your symptoms worsen, new symptoms develop, or you feel your condition is getting worse.")
	}

	return b.String()
}

func formatKeyVitals(v types.Vitals) string {
	var parts []string
	if v.HasHeartRate {
		parts = append(parts, fmt.Sprintf("HR %g", v.HeartRate))
	}
	if v.HasSystolicBP {
		parts = append(parts, fmt.Sprintf("SBP %g", v.SystolicBP))
	}
	if v.HasSpO2 {
		parts = append(parts, fmt.Sprintf("SpO2 %g%%", v.SpO2))
	}
	if v.HasTemperatureC {
		parts = append(parts, fmt.Sprintf("Temp %gC", v.TemperatureC))
	}
	if v.HasRespiratoryRate {
		parts = append(parts, fmt.Sprintf("RR %g", v.RespiratoryRate))
	}
	return strings.Join(parts, ", ")
}

func topN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func lowercaseAll(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = strings.ToLower(s)
	}
	return out
}
