// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package reasoning implements the Multimodal Clinical Reasoning stage
// (spec.md §4.2): a deterministic rule-based differential that is always
// available, and an optional external chat-completions backend gated by a
// PHI guard and a circuit breaker. Reason never returns an error — every
// failure path of the external backend falls back to Deterministic.
package reasoning

import (
	"context"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/adapterhttp"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/circuitbreaker"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/config"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/logging"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

const externalEndpoint = "reasoning"

// Reason produces a ReasoningOutput for one StructuredIntake. images holds
// data-URI image content in the same order as the intake's image
// descriptions; requestID is used only for log correlation.
func Reason(ctx context.Context, cfg config.AdapterConfig, breakers *circuitbreaker.Registry, s types.StructuredIntake, images []adapterhttp.ImageContent, requestID string) types.ReasoningOutput {
	log := logging.ForRequest(requestID)

	if cfg.Backend != config.BackendExternal {
		return Deterministic(s, len(images))
	}

	if len(s.PHIHits) > 0 {
		log.Info("reasoning: skipping external backend, phi_guard")
		out := Deterministic(s, len(images))
		out.ReasoningBackendSkippedReason = "phi_guard"
		return out
	}

	breaker := breakers.Get(externalEndpoint)

	sendImages := images
	if !cfg.SendImages {
		sendImages = nil
	}
	if cfg.MaxImages > 0 && len(sendImages) > cfg.MaxImages {
		sendImages = sendImages[:cfg.MaxImages]
	}

	req := adapterhttp.Request{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		System:      systemPrompt,
		User:        buildUserMessage(s, cfg.MaxTokens),
		Images:      sendImages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		RequestID:   requestID,
	}

	policy := adapterhttp.RetryPolicy{MaxRetries: cfg.MaxRetries, Timeout: cfg.Timeout, RetryBackoff: cfg.RetryBackoff}
	content, skipReason, err := adapterhttp.CallWithRetry(ctx, policy, breaker, req)
	if err != nil {
		out := Deterministic(s, len(images))
		if skipReason != "" {
			log.WithError(err).Warn("reasoning: external backend unavailable")
			out.ReasoningBackendSkippedReason = skipReason
		} else {
			log.WithError(err).Warn("reasoning: external backend call failed")
			out.ReasoningBackendError = classifyError(err)
		}
		return out
	}

	parsed, err := parseExternalResponse(content)
	if err != nil {
		log.WithError(err).Warn("reasoning: external backend returned unusable output")
		out := Deterministic(s, len(images))
		out.ReasoningBackendError = "invalid_json"
		return out
	}

	return types.ReasoningOutput{
		DifferentialConsiderations: parsed.differential,
		ReasoningRationale:         parsed.rationale,
		ReasoningBackend:           types.BackendExternal,
		ReasoningBackendModel:      cfg.Model,
		ReasoningPromptVersion:     PromptVersion,
		ImagesPresent:              len(images),
		ImagesSent:                 len(sendImages),
	}
}

func classifyError(err error) string {
	if err.Error() == "cancelled" {
		return "cancelled"
	}
	return "unavailable"
}
