// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adapterhttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallPatchesRequestIDOntoOutgoingPayload(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	content, err := Call(context.Background(), Request{
		BaseURL:   server.URL,
		Model:     "test-model",
		System:    "sys",
		User:      "user",
		RequestID: "req-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", content)

	metadata, ok := received["metadata"].(map[string]interface{})
	require.True(t, ok, "metadata field missing from outgoing payload")
	assert.Equal(t, "req-123", metadata["request_id"])
}

func TestCallOmitsMetadataWhenRequestIDEmpty(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	_, err := Call(context.Background(), Request{BaseURL: server.URL, Model: "test-model", System: "sys", User: "user"})
	require.NoError(t, err)

	_, hasMetadata := received["metadata"]
	assert.False(t, hasMetadata)
}
