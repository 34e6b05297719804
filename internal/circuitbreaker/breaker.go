// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package circuitbreaker implements the process-wide, per-endpoint circuit
// breaker state required by spec.md §5: a sliding failure-count window, an
// open/cooldown timer, and a single half-open probe per cooldown. It is
// modeled on the stats-gated selection in switchAILocal's
// internal/superbrain/router (StatsTracker success-rate windowing) but
// implements the literal closed/open/half-open state machine that router
// only approximates via success-rate thresholds.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is the externally observable circuit state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config controls when a breaker opens and how long it stays open.
type Config struct {
	FailureThreshold int           // failures within Window before opening
	Window           time.Duration // sliding window for counting failures
	Cooldown         time.Duration // how long the breaker stays open
}

// DefaultConfig mirrors spec.md §6 defaults (circuit.failures_threshold=2,
// circuit.cooldown=15s, circuit.window=60s).
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 2,
		Window:           60 * time.Second,
		Cooldown:         15 * time.Second,
	}
}

type failureRecord struct {
	at time.Time
}

// Breaker guards one external endpoint. All methods are safe for concurrent
// use; a Breaker is shared process-wide per endpoint, never per-request.
type Breaker struct {
	mu sync.Mutex

	cfg Config

	failures      []failureRecord
	openedAt      time.Time
	isOpen        bool
	halfOpenInUse bool
}

// New creates a Breaker for one endpoint with the given configuration.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	return &Breaker{cfg: cfg}
}

// Acquisition is the outcome of TryAcquire: whether the caller may proceed
// and, if not, the observed state and remaining cooldown.
type Acquisition struct {
	Allowed           bool
	State             State
	RemainingCooldown time.Duration
	HalfOpenProbe     bool
}

// TryAcquire decides whether a call to the guarded endpoint may proceed.
// When the breaker is open and the cooldown has elapsed, exactly one caller
// is granted a half-open probe; concurrent callers during that probe are
// rejected until RecordSuccess/RecordFailure resolves it.
func (b *Breaker) TryAcquire(now time.Time) Acquisition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isOpen {
		return Acquisition{Allowed: true, State: StateClosed}
	}

	elapsed := now.Sub(b.openedAt)
	if elapsed < b.cfg.Cooldown {
		return Acquisition{
			Allowed:           false,
			State:             StateOpen,
			RemainingCooldown: b.cfg.Cooldown - elapsed,
		}
	}

	if b.halfOpenInUse {
		return Acquisition{Allowed: false, State: StateHalfOpen}
	}

	b.halfOpenInUse = true
	return Acquisition{Allowed: true, State: StateHalfOpen, HalfOpenProbe: true}
}

// RecordSuccess closes the breaker (if it was open/half-open) and resets the
// failure window.
func (b *Breaker) RecordSuccess(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = nil
	b.isOpen = false
	b.halfOpenInUse = false
	b.openedAt = time.Time{}
}

// RecordFailure accounts a failure within the sliding window and opens the
// breaker once FailureThreshold is reached. A failure observed during a
// half-open probe re-opens the breaker immediately.
func (b *Breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.halfOpenInUse {
		b.halfOpenInUse = false
		b.open(now)
		return
	}

	b.failures = append(b.failures, failureRecord{at: now})
	b.pruneLocked(now)

	if len(b.failures) >= b.cfg.FailureThreshold {
		b.open(now)
	}
}

func (b *Breaker) open(now time.Time) {
	b.isOpen = true
	b.openedAt = now
	b.failures = nil
}

func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	kept := b.failures[:0]
	for _, f := range b.failures {
		if f.at.After(cutoff) {
			kept = append(kept, f)
		}
	}
	b.failures = kept
}

// Snapshot is a point-in-time view of the breaker state for observability.
type Snapshot struct {
	State         State
	FailureCount  int
	OpenedAt      time.Time
	HalfOpenInUse bool
}

// Snapshot returns the current breaker state. It does not change the
// open/closed state, but it does prune failures older than Window.
func (b *Breaker) Snapshot(now time.Time) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pruneLocked(now)

	state := StateClosed
	if b.isOpen {
		if now.Sub(b.openedAt) >= b.cfg.Cooldown {
			state = StateHalfOpen
		} else {
			state = StateOpen
		}
	}

	return Snapshot{
		State:         state,
		FailureCount:  len(b.failures),
		OpenedAt:      b.openedAt,
		HalfOpenInUse: b.halfOpenInUse,
	}
}

// Registry holds one Breaker per endpoint key, created lazily and shared for
// the lifetime of the process — spec.md §5's "shared process-wide, protected
// for concurrent access".
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
}

// NewRegistry creates a Registry that lazily constructs Breakers with cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Get returns the Breaker for the given endpoint key, creating it on first
// use.
func (r *Registry) Get(endpoint string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[endpoint]
	if !ok {
		b = New(r.cfg)
		r.breakers[endpoint] = b
	}
	return b
}
