// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package communication

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/circuitbreaker"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/config"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

func TestRewriteSkippedWhenBackendDeterministic(t *testing.T) {
	draft := types.CommunicationOutput{ClinicianHandoff: "Situation: x"}
	out := Rewrite(context.Background(), config.AdapterConfig{Backend: config.BackendDeterministic}, circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig()), types.StructuredIntake{}, draft, "req-1")
	assert.Equal(t, draft, out)
}

func TestRewriteSkippedOnPHIHits(t *testing.T) {
	draft := types.CommunicationOutput{ClinicianHandoff: "Situation: x"}
	s := types.StructuredIntake{PHIHits: []string{"chief_complaint: email-like pattern"}}
	out := Rewrite(context.Background(), config.AdapterConfig{Backend: config.BackendExternal, BaseURL: "http://127.0.0.1:1"}, circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig()), s, draft, "req-1")
	assert.Equal(t, "phi_guard", out.CommunicationBackendSkippedReason)
	assert.Equal(t, draft.ClinicianHandoff, out.ClinicianHandoff)
}

func TestRewriteFallsBackOnUnreachableBackend(t *testing.T) {
	draft := types.CommunicationOutput{ClinicianHandoff: "Situation: x"}
	cfg := config.AdapterConfig{Backend: config.BackendExternal, BaseURL: "http://127.0.0.1:1", Timeout: 1}
	out := Rewrite(context.Background(), cfg, circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig()), types.StructuredIntake{}, draft, "req-1")
	assert.NotEmpty(t, out.CommunicationBackendError)
	assert.Equal(t, draft.ClinicianHandoff, out.ClinicianHandoff)
}

func TestPreservesRedFlagsRejectsDroppedPhrase(t *testing.T) {
	draft := types.CommunicationOutput{ClinicianHandoff: "Assessment: Risk tier critical. Red flags: Chest pain, Hypotension."}
	rewritten := rewriteResult{clinicianHandoff: "Situation: patient has chest discomfort.", patientSummary: "Go to the ER."}
	assert.False(t, preservesRedFlags(draft, rewritten))
}

func TestPreservesRedFlagsAcceptsWhenPhrasesKept(t *testing.T) {
	draft := types.CommunicationOutput{ClinicianHandoff: "Assessment: Risk tier critical. Red flags: Chest pain."}
	rewritten := rewriteResult{clinicianHandoff: "Assessment: the patient reports chest pain.", patientSummary: "Seek care for chest pain."}
	assert.True(t, preservesRedFlags(draft, rewritten))
}

func TestPreservesSectionHeadersRejectsReorderedHeaders(t *testing.T) {
	reordered := "Background: x\nSituation: y\nAssessment: z\nRecommendation: w"
	assert.False(t, preservesSectionHeaders(reordered))
}

func TestPreservesSectionHeadersAcceptsOriginalOrder(t *testing.T) {
	ok := "Situation: y\nBackground: x\nAssessment: z\nRecommendation: w"
	assert.True(t, preservesSectionHeaders(ok))
}

func TestRedFlagPhrasesInParsesAssessmentClause(t *testing.T) {
	handoff := "Assessment: some rationale. Red flags: Chest pain, Hypotension.\nRecommendation: x"
	got := redFlagPhrasesIn(handoff)
	require.Equal(t, []string{"Chest pain", "Hypotension"}, got)
}
