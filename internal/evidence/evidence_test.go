// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/policypack"
	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

func loadDefaultPack(t *testing.T) *policypack.Loader {
	t.Helper()
	loader, err := policypack.NewLoader("../../configs/policy_pack.yaml", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loader.Close() })
	return loader
}

func TestEvaluateMatchesChestPainProtocol(t *testing.T) {
	loader := loadDefaultPack(t)
	s := types.StructuredIntake{Symptoms: []string{"chest_pain"}}

	out := Evaluate(loader, s, 2)

	require.NotEmpty(t, out.ProtocolCitations)
	assert.Equal(t, "acs_chest_pain", out.ProtocolCitations[0].PolicyID)
	assert.Contains(t, out.RecommendedActionsFromPolicy, "Obtain 12-lead ECG within 10 minutes")
	assert.NotEmpty(t, out.PolicyPackSHA256)
}

func TestEvaluateRoutineURIDoesNotMatchEmergentPathways(t *testing.T) {
	loader := loadDefaultPack(t)
	s := types.StructuredIntake{Symptoms: []string{"sore_throat"}}
	s.Vitals.HasTemperatureC = true
	s.Vitals.TemperatureC = 37.4

	out := Evaluate(loader, s, 2)

	require.Len(t, out.ProtocolCitations, 1)
	assert.Equal(t, "routine_uri", out.ProtocolCitations[0].PolicyID)
}

func TestEvaluateNoMatchReturnsEmptyNotError(t *testing.T) {
	loader := loadDefaultPack(t)
	out := Evaluate(loader, types.StructuredIntake{}, 2)
	assert.Empty(t, out.ProtocolCitations)
	assert.Empty(t, out.RecommendedActionsFromPolicy)
	assert.NotEmpty(t, out.PolicyPackSHA256)
}

func TestEvaluateRespectsTopK(t *testing.T) {
	loader := loadDefaultPack(t)
	s := types.StructuredIntake{Symptoms: []string{"chest_pain", "slurred_speech", "hematemesis"}}

	out := Evaluate(loader, s, 2)
	assert.Len(t, out.ProtocolCitations, 2)
}
