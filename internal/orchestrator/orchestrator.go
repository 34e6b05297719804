// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package orchestrator implements the Pipeline Orchestrator (spec.md §4.6):
// the single `triage` entry point that validates an Intake, runs the five
// stages in fixed order over one RunContext, times and traces each stage,
// and assembles the final TriageResult. It is grounded on the teacher's
// top-level request handler — a fixed sequence of named steps with
// per-step timing and logging, not a generic workflow engine — generalized
// from one request type to the triage pipeline's five stages.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/adapterhttp"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/circuitbreaker"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/communication"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/config"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/evidence"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/logging"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/policypack"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/reasoning"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/safety"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/structuring"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// PipelineVersion identifies this orchestrator's wiring, independent of the
// individual stage prompt/rule versions each carries on its own output.
const PipelineVersion = "triage-pipeline-v1"

// Error is returned instead of a TriageResult for the two cases spec.md §7
// reserves for immediate, in-band failure: invalid input, and cancellation
// before the Safety stage has completed.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func invalidErr(format string, args ...interface{}) *Error {
	return &Error{Code: "intake_invalid", Message: fmt.Sprintf(format, args...)}
}

var errCancelled = &Error{Code: "cancelled", Message: "cancelled before the safety stage completed"}

// TriageJSON parses raw as an Intake, enforcing request.max_bytes before
// even attempting to parse, then runs Triage. This is the boundary a JSON
// caller (HTTP handler, CLI, test harness) is expected to call; Triage
// itself works against an already-decoded Intake.
func TriageJSON(ctx context.Context, cfg *config.Config, loader *policypack.Loader, breakers *circuitbreaker.Registry, raw []byte, requestID string, deadline time.Duration) (*types.TriageResult, error) {
	maxBytes := cfg.Request.MaxBytes
	if maxBytes > 0 && len(raw) > maxBytes {
		return nil, invalidErr("payload of %d bytes exceeds request.max_bytes (%d)", len(raw), maxBytes)
	}

	var intake types.Intake
	if err := gojson.Unmarshal(raw, &intake); err != nil {
		return nil, invalidErr("malformed JSON: %v", err)
	}

	return Triage(ctx, cfg, loader, breakers, intake, requestID, deadline)
}

// Triage runs the full five-stage pipeline for one Intake. requestID, if
// empty, is generated. deadline, if zero, defaults to cfg.Request.Deadline.
//
// Triage returns a non-nil error only for intake_invalid and for
// cancellation before Safety completes (spec.md §5); every other failure
// mode is absorbed in-band into the returned TriageResult's trace and
// *_backend_error/*_backend_skipped_reason fields.
func Triage(ctx context.Context, cfg *config.Config, loader *policypack.Loader, breakers *circuitbreaker.Registry, intake types.Intake, requestID string, deadline time.Duration) (*types.TriageResult, error) {
	if strings.TrimSpace(intake.ChiefComplaint) == "" {
		return nil, invalidErr("chief_complaint is required and must be non-empty after trim")
	}

	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := logging.ForRequest(requestID)

	if deadline <= 0 {
		deadline = cfg.Request.Deadline
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	createdAt := start.UTC().Format(time.RFC3339)

	if runCtx.Err() != nil {
		log.Warn("orchestrator: request already cancelled, aborting before structuring")
		return nil, errCancelled
	}

	rc := &types.RunContext{RequestID: requestID, StartedAt: start, Intake: intake}
	trace := make([]types.TraceEntry, 0, len(types.StageOrder))

	structured, entry := runStage(types.StageStructuring, func() types.StructuredIntake {
		return structuring.Structure(rc.Intake, structuring.Options{NegationWindow: cfg.Safety.NegationWindow})
	})
	rc.Structured = structured
	trace = append(trace, entry)

	if runCtx.Err() != nil {
		log.Warn("orchestrator: cancelled before reasoning started")
		return nil, errCancelled
	}

	images := imageContents(rc.Intake.ImageDataURLs)
	reasoningOut, entry := runStage(types.StageReasoning, func() types.ReasoningOutput {
		return reasoning.Reason(runCtx, cfg.Reasoning, breakers, rc.Structured, images, requestID)
	})
	rc.Reasoning = reasoningOut
	trace = append(trace, entry)

	if runCtx.Err() != nil {
		log.Warn("orchestrator: cancelled before evidence started")
		return nil, errCancelled
	}

	evidenceOut, entry := runStage(types.StageEvidence, func() types.EvidenceOutput {
		return evidence.Evaluate(loader, rc.Structured, cfg.Policy.TopK)
	})
	rc.Evidence = evidenceOut
	trace = append(trace, entry)

	if runCtx.Err() != nil {
		log.Warn("orchestrator: cancelled before safety started")
		return nil, errCancelled
	}

	var nextActions []string
	safetyOut, entry := runStage(types.StageSafety, func() types.SafetyOutput {
		out, actions := safety.Evaluate(rc.Structured, rc.Reasoning, rc.Evidence.RecommendedActionsFromPolicy)
		nextActions = actions
		return out
	})
	rc.Safety = safetyOut
	trace = append(trace, entry)

	// Safety has completed: per spec.md §5, downstream consumers can now
	// rely on a tier, so cancellation from here on degrades to a partial
	// result rather than aborting the request.
	if runCtx.Err() != nil {
		log.Warn("orchestrator: cancelled before communication started, returning partial result")
		trace = append(trace, types.TraceEntry{Agent: string(types.StageCommunication), Error: "cancelled"})
	} else {
		commOut, entry := runStage(types.StageCommunication, func() types.CommunicationOutput {
			return communication.Communicate(runCtx, cfg.Communication, breakers, rc.Structured, rc.Safety, nextActions, requestID)
		})
		rc.Communication = commOut
		trace = append(trace, entry)
	}

	return &types.TriageResult{
		RequestID:                  requestID,
		CreatedAt:                  createdAt,
		PipelineVersion:            PipelineVersion,
		TotalLatencyMs:             time.Since(start).Milliseconds(),
		Confidence:                 confidence(rc.Structured, rc.Safety, rc.Reasoning),
		RecommendedNextActions:     nextActions,
		RedFlags:                   rc.Safety.RedFlags,
		RiskTier:                   rc.Safety.RiskTier,
		EscalationRequired:         rc.Safety.EscalationRequired,
		DifferentialConsiderations: rc.Reasoning.DifferentialConsiderations,
		ClinicianHandoff:           rc.Communication.ClinicianHandoff,
		PatientSummary:             rc.Communication.PatientSummary,
		UncertaintyReasons:         rc.Safety.UncertaintyReasons,
		Trace:                      trace,
	}, nil
}

func imageContents(dataURLs []string) []adapterhttp.ImageContent {
	if len(dataURLs) == 0 {
		return nil
	}
	images := make([]adapterhttp.ImageContent, 0, len(dataURLs))
	for _, url := range dataURLs {
		images = append(images, adapterhttp.ImageContent{DataURL: url})
	}
	return images
}
