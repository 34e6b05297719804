// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package communication

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/adapterhttp"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/circuitbreaker"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/config"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/logging"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

const rewriteSystemPrompt = "Rewrite the following for clarity. Do not add new clinical facts. " +
	"Preserve section headers. Return JSON with keys `clinician_handoff` and `patient_summary`."

const externalEndpoint = "communication"

// Rewrite attempts the optional rewrite-only pass over draft. On any
// failure — transport, invalid JSON, a dropped red-flag phrase, a missing
// or reordered section header, PHI in the intake, or an open circuit — it
// returns draft unchanged with the appropriate
// communication_backend_error/communication_backend_skipped_reason set.
// Rewrite never returns an error to its caller.
func Rewrite(ctx context.Context, cfg config.AdapterConfig, breakers *circuitbreaker.Registry, s types.StructuredIntake, draft types.CommunicationOutput, requestID string) types.CommunicationOutput {
	log := logging.ForRequest(requestID)

	if cfg.Backend != config.BackendExternal {
		return draft
	}

	if len(s.PHIHits) > 0 {
		draft.CommunicationBackendSkippedReason = "phi_guard"
		return draft
	}

	breaker := breakers.Get(externalEndpoint)

	req := adapterhttp.Request{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		System:      rewriteSystemPrompt,
		User:        buildRewriteUserMessage(draft),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		RequestID:   requestID,
	}

	policy := adapterhttp.RetryPolicy{MaxRetries: cfg.MaxRetries, Timeout: cfg.Timeout, RetryBackoff: cfg.RetryBackoff}
	content, skipReason, err := adapterhttp.CallWithRetry(ctx, policy, breaker, req)
	if err != nil {
		if skipReason != "" {
			log.WithError(err).Warn("communication: rewrite backend unavailable")
			draft.CommunicationBackendSkippedReason = skipReason
		} else {
			log.WithError(err).Warn("communication: rewrite backend call failed")
			draft.CommunicationBackendError = "unavailable"
		}
		return draft
	}

	rewritten, err := parseRewrite(content)
	if err != nil {
		log.WithError(err).Warn("communication: rewrite backend returned unusable output")
		draft.CommunicationBackendError = "invalid_json"
		return draft
	}

	if !preservesRedFlags(draft, rewritten) {
		log.Warn("communication: rewrite dropped a red-flag phrase, keeping deterministic draft")
		draft.CommunicationBackendError = "facts_dropped"
		return draft
	}

	if !preservesSectionHeaders(rewritten.clinicianHandoff) {
		log.Warn("communication: rewrite dropped or reordered an SBAR section header, keeping deterministic draft")
		draft.CommunicationBackendError = "facts_dropped"
		return draft
	}

	return types.CommunicationOutput{
		ClinicianHandoff:           rewritten.clinicianHandoff,
		PatientSummary:             rewritten.patientSummary,
		CommunicationBackend:       types.BackendExternal,
		CommunicationBackendModel:  cfg.Model,
		CommunicationPromptVersion: PromptVersion,
	}
}

type rewriteResult struct {
	clinicianHandoff string
	patientSummary   string
}

func buildRewriteUserMessage(draft types.CommunicationOutput) string {
	return fmt.Sprintf(
		"clinician_handoff:\n%s\n\npatient_summary:\n%s",
		adapterhttp.SanitizePrompt(draft.ClinicianHandoff),
		adapterhttp.SanitizePrompt(draft.PatientSummary),
	)
}

func parseRewrite(raw string) (rewriteResult, error) {
	jsonStr, ok := adapterhttp.ExtractJSONObject(raw)
	if !ok {
		return rewriteResult{}, fmt.Errorf("invalid_json")
	}

	handoff := gjson.Get(jsonStr, "clinician_handoff")
	summary := gjson.Get(jsonStr, "patient_summary")
	if !handoff.Exists() || !summary.Exists() || handoff.String() == "" || summary.String() == "" {
		return rewriteResult{}, fmt.Errorf("invalid_json")
	}

	return rewriteResult{clinicianHandoff: handoff.String(), patientSummary: summary.String()}, nil
}

// preservesRedFlags requires that every red-flag phrase implied by the
// deterministic draft still appears, case-insensitively, somewhere in the
// rewrite (spec.md §4.5).
func preservesRedFlags(draft types.CommunicationOutput, rewritten rewriteResult) bool {
	combined := strings.ToLower(rewritten.clinicianHandoff + " " + rewritten.patientSummary)
	for _, phrase := range redFlagPhrasesIn(draft.ClinicianHandoff) {
		if !strings.Contains(combined, strings.ToLower(phrase)) {
			return false
		}
	}
	return true
}

// redFlagPhrasesIn extracts the "Red flags: a, b, c." clause the
// deterministic template always emits in the Assessment section.
func redFlagPhrasesIn(handoff string) []string {
	const marker = "Red flags: "
	idx := strings.Index(handoff, marker)
	if idx < 0 {
		return nil
	}
	rest := handoff[idx+len(marker):]
	if end := strings.IndexByte(rest, '.'); end >= 0 {
		rest = rest[:end]
	}
	parts := strings.Split(rest, ", ")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// preservesSectionHeaders requires every SBAR header to be present, in the
// fixed order, per the conservative reading of the Open Question in
// spec.md §9 (section reordering is not permitted).
func preservesSectionHeaders(text string) bool {
	last := -1
	for _, header := range sectionHeaders {
		idx := strings.Index(text, header)
		if idx < 0 || idx < last {
			return false
		}
		last = idx
	}
	return true
}
