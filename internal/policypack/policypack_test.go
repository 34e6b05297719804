// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package policypack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amo-Zeng/clinicaflow-medgemma/internal/types"
)

// knownFixtureDigest is the published hex digest of
// testdata/fixture_pack.json's canonical form (spec.md §9: "a fixture with
// known bytes and its published hex digest seeds the test suite"). It was
// computed once, out of band, over the canonical bytes:
// {"policies":[{"citation":"Protocol C-1","id":"p1","matchers":{},"recommended_actions":["Administer A"],"title":"Fixture Policy"}],"version":"fixture-v1"}
const knownFixtureDigest = "5161f94a321da1c2d640beb7ef765349142c263c2987edb9f47a788fa32c6f27"

func TestCanonicalizeSortsKeys(t *testing.T) {
	raw := []byte(`{"b":1,"a":2,"nested":{"z":1,"y":2}}`)
	canonical, err := canonicalize(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"nested":{"y":2,"z":1}}`, string(canonical))
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	raw := []byte(`{"b":1,"a":2}`)
	once, err := canonicalize(raw)
	require.NoError(t, err)
	twice, err := canonicalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestFixtureDigestMatchesPublishedValue(t *testing.T) {
	loader, err := NewLoader("testdata/fixture_pack.json", false)
	require.NoError(t, err)
	defer loader.Close()

	assert.Equal(t, knownFixtureDigest, loader.Digest())

	canonical, err := loader.CanonicalJSON()
	require.NoError(t, err)
	digest, _, err := hashCanonical(canonical)
	require.NoError(t, err)
	assert.Equal(t, knownFixtureDigest, digest, "rehashing the loaded pack's canonical bytes must reproduce the published digest")
}

func TestSelectPreservesPackOrderAndTopK(t *testing.T) {
	loader, err := NewLoader("testdata/fixture_pack.json", false)
	require.NoError(t, err)
	defer loader.Close()

	out := loader.Select(types.StructuredIntake{}, 2)
	require.Len(t, out.ProtocolCitations, 1)
	assert.Equal(t, "p1", out.ProtocolCitations[0].PolicyID)
	assert.Equal(t, []string{"Administer A"}, out.RecommendedActionsFromPolicy)
	assert.Equal(t, knownFixtureDigest, out.PolicyPackSHA256)
}

func TestSelectDedupesActionsAcrossPolicies(t *testing.T) {
	pack := Pack{
		Version: "t",
		Policies: []Policy{
			{ID: "a", Title: "A", Matchers: Matchers{}, RecommendedActions: []string{"Shared action", "Only in A"}},
			{ID: "b", Title: "B", Matchers: Matchers{}, RecommendedActions: []string{"Shared action", "Only in B"}},
		},
	}
	compiled, err := compile(pack)
	require.NoError(t, err)

	loader := &Loader{compiled: compiled, digest: "test"}
	out := loader.Select(types.StructuredIntake{}, 2)
	assert.Equal(t, []string{"Shared action", "Only in A", "Only in B"}, out.RecommendedActionsFromPolicy)
}

func TestSelectEvaluatesVitalAndSymptomPredicates(t *testing.T) {
	pack := Pack{
		Version: "t",
		Policies: []Policy{
			{ID: "hypoxemia", Title: "Hypoxemia", Matchers: Matchers{Vitals: []VitalMatcher{{Field: "spo2", Op: "<", Value: 92}}}, RecommendedActions: []string{"Apply supplemental oxygen"}},
			{ID: "chest_pain", Title: "Chest pain", Matchers: Matchers{SymptomsAllOf: []string{"chest_pain"}}, RecommendedActions: []string{"Obtain 12-lead ECG"}},
		},
	}
	compiled, err := compile(pack)
	require.NoError(t, err)
	loader := &Loader{compiled: compiled, digest: "test"}

	structured := types.StructuredIntake{Symptoms: []string{"chest_pain"}}
	structured.Vitals.HasSpO2 = true
	structured.Vitals.SpO2 = 88

	out := loader.Select(structured, 2)
	require.Len(t, out.ProtocolCitations, 2)
	assert.ElementsMatch(t, []string{"hypoxemia", "chest_pain"}, []string{out.ProtocolCitations[0].PolicyID, out.ProtocolCitations[1].PolicyID})
}
