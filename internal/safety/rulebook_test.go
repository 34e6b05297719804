// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONIsReproducible(t *testing.T) {
	digest1, canonical1, err := CanonicalJSON()
	require.NoError(t, err)
	digest2, canonical2, err := CanonicalJSON()
	require.NoError(t, err)

	assert.Equal(t, digest1, digest2)
	assert.Equal(t, canonical1, canonical2)
	assert.NotEmpty(t, digest1)
}
