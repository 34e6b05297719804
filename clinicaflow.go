// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package clinicaflow is the small public facade over the triage pipeline's
// internal packages, mirroring switchAILocal's sdk/switchailocal pattern: a
// long-lived Service wraps the process-wide state (loaded policy pack,
// shared circuit-breaker registry) and exposes the one operation spec.md §6
// names, `triage(intake, request_id?, deadline?) -> TriageResult | Error`.
package clinicaflow

import (
	"context"
	"time"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/circuitbreaker"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/config"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/logging"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/orchestrator"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/policypack"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// Intake and TriageResult are re-exported so callers never need to import
// internal/types directly.
type (
	Intake       = types.Intake
	TriageResult = types.TriageResult
)

// Error is the structured error Triage/TriageJSON return for intake_invalid
// and for cancellation before the safety stage completes (spec.md §7).
type Error = orchestrator.Error

// Service owns the long-lived, process-wide state a triage pipeline needs:
// the loaded policy pack snapshot and the shared per-endpoint circuit
// breakers. Construct one per process with New and reuse it across
// requests; Service is safe for concurrent use.
type Service struct {
	cfg      *config.Config
	loader   *policypack.Loader
	breakers *circuitbreaker.Registry
}

// New loads configuration from configPath (empty for defaults), loads the
// configured policy pack, and wires the shared circuit-breaker registry. A
// policy pack load failure here is startup-fatal, per spec.md §4.7.
func New(configPath string) (*Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		return nil, err
	}

	loader, err := policypack.NewLoader(cfg.Policy.PackPath, cfg.Policy.WatchReload)
	if err != nil {
		return nil, err
	}

	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		FailureThreshold: cfg.Circuit.FailuresThreshold,
		Window:           cfg.Circuit.Window,
		Cooldown:         cfg.Circuit.Cooldown,
	})

	return &Service{cfg: cfg, loader: loader, breakers: breakers}, nil
}

// Triage runs the full five-stage pipeline for one already-decoded Intake.
func (s *Service) Triage(ctx context.Context, intake Intake, requestID string, deadline time.Duration) (*TriageResult, error) {
	return orchestrator.Triage(ctx, s.cfg, s.loader, s.breakers, intake, requestID, deadline)
}

// TriageJSON runs the full pipeline for a raw JSON-encoded Intake, enforcing
// request.max_bytes before parsing.
func (s *Service) TriageJSON(ctx context.Context, raw []byte, requestID string, deadline time.Duration) (*TriageResult, error) {
	return orchestrator.TriageJSON(ctx, s.cfg, s.loader, s.breakers, raw, requestID, deadline)
}

// PolicyPackSHA256 returns the currently active policy pack's canonical hash.
func (s *Service) PolicyPackSHA256() string { return s.loader.Digest() }

// ReloadPolicyPack re-fetches and re-verifies the policy pack from its
// configured source, swapping it in only on success (spec.md §4.7).
func (s *Service) ReloadPolicyPack() error { return s.loader.Reload() }

// Close releases the service's long-lived resources: the policy pack's hot
// reload watcher and the rotating log file, if configured.
func (s *Service) Close() error {
	logging.Close()
	return s.loader.Close()
}
