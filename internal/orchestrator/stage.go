// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"fmt"
	"time"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// runStage times fn and recovers an unexpected panic into the trace entry's
// Error field instead of letting it escape the pipeline (spec.md §4.6 step
// 3: "if a stage raises an unexpected error... record the error string on
// the trace entry, substitute a safe default output, and continue"). On
// panic, result is the zero value of T (an empty StructuredIntake, empty
// EvidenceOutput, and so on). No stage-specific fallback is substituted: a
// panicking reasoning stage yields an empty ReasoningOutput, not the
// deterministic differential.
func runStage[T any](name types.StageName, fn func() T) (result T, entry types.TraceEntry) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			entry = types.TraceEntry{
				Agent:     string(name),
				LatencyMs: time.Since(start).Milliseconds(),
				Output:    result,
				Error:     fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	result = fn()
	entry = types.TraceEntry{
		Agent:     string(name),
		LatencyMs: time.Since(start).Milliseconds(),
		Output:    result,
	}
	return result, entry
}
