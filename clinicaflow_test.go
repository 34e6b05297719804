// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package clinicaflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestServiceTriageReturnsCriticalResult(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Triage(context.Background(), Intake{
		ChiefComplaint: "crushing chest pain radiating to left arm",
		Vitals: types.Vitals{
			HeartRate: 128, HasHeartRate: true,
			SystolicBP: 82, HasSystolicBP: true,
		},
	}, "", 0)

	require.NoError(t, err)
	assert.Equal(t, types.TierCritical, result.RiskTier)
	assert.NotEmpty(t, svc.PolicyPackSHA256())
}

func TestServiceTriageJSONRejectsMissingChiefComplaint(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.TriageJSON(context.Background(), []byte(`{"history":"no complaint given"}`), "", 0)
	require.Error(t, err)
	var orchErr *Error
	require.ErrorAs(t, err, &orchErr)
	assert.Equal(t, "intake_invalid", orchErr.Code)
}
