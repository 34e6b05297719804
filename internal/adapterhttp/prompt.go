// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adapterhttp

import (
	"regexp"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

var (
	roleLineRe      = regexp.MustCompile(`(?im)^\s*(SYSTEM|ASSISTANT)\s*:.*$`)
	ignorePrevRe    = regexp.MustCompile(`(?i)ignore (the )?previous instructions`)
	fencedBlockRe   = regexp.MustCompile("(?s)```.*?```")
)

// SanitizePrompt strips prompt-injection attempts from untrusted text before
// it is embedded in a message sent to an external model (spec.md §4.2): any
// line matching /^\s*(SYSTEM|ASSISTANT)\s*:/i, any "ignore previous
// instructions" phrase, and fenced code blocks that themselves contain a
// role marker.
func SanitizePrompt(text string) string {
	text = fencedBlockRe.ReplaceAllStringFunc(text, func(block string) string {
		if roleLineRe.MatchString(block) {
			return "[removed: fenced block containing role marker]"
		}
		return block
	})
	text = roleLineRe.ReplaceAllString(text, "[removed: role-marker line]")
	text = ignorePrevRe.ReplaceAllString(text, "[removed: instruction-override attempt]")
	return text
}

// CountTokens estimates the token count of text using the cl100k_base
// encoding as a reasonable default across OpenAI-compatible chat models, for
// prompt/response budget checks against MaxTokens.
func CountTokens(text string) int {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		// Conservative fallback: ~4 chars/token, never blocks the caller.
		return len(text)/4 + 1
	}
	ids, _, err := enc.Encode(text)
	if err != nil {
		return len(text)/4 + 1
	}
	return len(ids)
}

// TruncateToTokens truncates text to at most maxTokens tokens, preferring to
// cut at a sentence boundary, so oversized prior_notes/history do not blow
// the adapter's max_tokens budget before the model even answers.
func TruncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || CountTokens(text) <= maxTokens {
		return text
	}

	// Binary search for the longest byte prefix that fits the budget, then
	// back off to the last sentence boundary inside it.
	lo, hi := 0, len(text)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if CountTokens(text[:mid]) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	truncated := text[:lo]
	if idx := strings.LastIndexAny(truncated, ".!?"); idx > 0 {
		truncated = truncated[:idx+1]
	}
	return truncated
}
