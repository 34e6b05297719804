// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package types

import "time"

// RunContext is the append-only record threaded through the five pipeline
// stages (spec.md §2). Stages read it and return a fresh Output; the
// orchestrator is the only thing that mutates a RunContext, by merging each
// stage's Output into it before invoking the next stage.
type RunContext struct {
	RequestID string
	StartedAt time.Time

	Intake           Intake
	Structured       StructuredIntake
	Reasoning        ReasoningOutput
	Evidence         EvidenceOutput
	Safety           SafetyOutput
	Communication    CommunicationOutput
}

// StageName enumerates the five fixed pipeline stages, in execution order.
type StageName string

const (
	StageStructuring    StageName = "structuring"
	StageReasoning      StageName = "reasoning"
	StageEvidence       StageName = "evidence"
	StageSafety         StageName = "safety"
	StageCommunication  StageName = "communication"
)

// StageOrder is the fixed execution/trace order (spec.md §2, §5).
var StageOrder = []StageName{
	StageStructuring,
	StageReasoning,
	StageEvidence,
	StageSafety,
	StageCommunication,
}
