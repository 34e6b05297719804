// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package communication

import (
	"context"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/circuitbreaker"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/config"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// Communicate builds the deterministic SBAR draft and, if configured,
// attempts the optional rewrite-only pass over it.
func Communicate(ctx context.Context, cfg config.AdapterConfig, breakers *circuitbreaker.Registry, s types.StructuredIntake, safetyOut types.SafetyOutput, actions []string, requestID string) types.CommunicationOutput {
	draft := Draft(s, safetyOut, actions)
	return Rewrite(ctx, cfg, breakers, s, draft, requestID)
}
