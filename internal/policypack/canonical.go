// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package policypack

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalize reproduces spec.md §9's "Canonical JSON" for a pack: sorted
// object keys, compact separators, UTF-8, no trailing newline. encoding/json
// (not goccy/go-json, used everywhere else in this module for speed) is used
// deliberately here: Go's standard map type, when round-tripped through
// json.Unmarshal into interface{} and re-Marshaled, always serializes object
// keys in sorted byte order — the one property this hash depends on that a
// faster codec is not contractually guaranteed to preserve.
func canonicalize(raw []byte) ([]byte, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("policypack: canonicalize: %w", err)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("policypack: canonicalize: %w", err)
	}
	return out, nil
}

// hashCanonical returns the lowercase hex SHA-256 digest of raw's canonical
// form, and the canonical bytes themselves.
func hashCanonical(raw []byte) (digest string, canonical []byte, err error) {
	canonical, err = canonicalize(raw)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), canonical, nil
}

// CanonicalHash exposes hashCanonical to other packages that need the same
// canonicalization rule for a different versioned artifact — the safety
// rulebook (spec.md §4.6: "exposed read-only... with identical
// canonicalization rules").
func CanonicalHash(raw []byte) (digest string, canonical []byte, err error) {
	return hashCanonical(raw)
}
