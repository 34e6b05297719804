// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package adapterhttp is the shared low-level client used by both the
// reasoning and communication external adapters (spec.md §4.2, §4.5): one
// connection-pooled http.Client (spec.md §5 "HTTP client used by adapters:
// a single connection-pooled client shared across requests"), OpenAI-style
// chat-completions request/response translation, and the JSON-shape
// recovery used when a model wraps its answer in prose. Modeled on
// switchAILocal's internal/runtime/executor.OllamaExecutor, which performs
// the same "translate to/from an OpenAI-compatible wire shape over
// context-aware HTTP" job for a different backend.
package adapterhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// sharedClient is the single connection-pooled client every adapter call
// goes through; per-attempt timeouts are set via context, not per-client
// Timeout, so the same client serves every request's bounded deadline.
var sharedClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	},
}

// ImageContent is one data-URI image reference sent in a multimodal user
// message.
type ImageContent struct {
	DataURL string
}

// Request is one chat-completions call.
type Request struct {
	BaseURL     string
	APIKey      string
	Model       string
	System      string
	User        string
	Images      []ImageContent
	Temperature float64
	MaxTokens   int

	// RequestID, when set, is patched onto the outgoing payload as
	// metadata.request_id so the backend's own logs can be correlated back
	// to this pipeline run without round-tripping the whole body through a
	// struct field.
	RequestID string
}

// Error distinguishes retryable transport/5xx/429 failures from
// non-retryable 4xx failures, per spec.md §4.2's retry policy.
type Error struct {
	Retryable bool
	StatusCode int
	Err       error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("adapterhttp: http %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("adapterhttp: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func networkError(err error) *Error {
	return &Error{Retryable: true, Err: err}
}

func statusError(code int, body string) *Error {
	retryable := code == http.StatusTooManyRequests || code >= 500
	return &Error{Retryable: retryable, StatusCode: code, Err: fmt.Errorf("%s", body)}
}

type chatMessagePart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *chatImageURL   `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequestBody struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// Call performs one OpenAI-compatible chat-completions attempt, honoring
// ctx's deadline as the per-attempt timeout. It returns the assistant
// message content as a raw string; the caller is responsible for JSON-shape
// recovery via ExtractJSONObject.
func Call(ctx context.Context, req Request) (string, error) {
	userContent := interface{}(req.User)
	if len(req.Images) > 0 {
		parts := []chatMessagePart{{Type: "text", Text: req.User}}
		for _, img := range req.Images {
			parts = append(parts, chatMessagePart{Type: "image_url", ImageURL: &chatImageURL{URL: img.DataURL}})
		}
		userContent = parts
	}

	body := chatRequestBody{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: userContent},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &Error{Err: fmt.Errorf("marshal request: %w", err)}
	}

	if req.RequestID != "" {
		if patched, err := sjson.SetBytes(payload, "metadata.request_id", req.RequestID); err == nil {
			payload = patched
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(req.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	resp, err := sharedClient.Do(httpReq)
	if err != nil {
		return "", networkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, string(respBody))
	}

	content := gjson.GetBytes(respBody, "choices.0.message.content")
	if !content.Exists() {
		return "", &Error{Err: fmt.Errorf("response missing choices.0.message.content")}
	}
	return content.String(), nil
}

// ExtractJSONObject finds the first balanced {...} substring in s, to
// recover a JSON object a model wrapped in prose (spec.md §4.2's
// "JSON-shape recovery").
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
