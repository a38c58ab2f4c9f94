// Copyright 2026 Dominik Schlosser
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package format provides input reading and encoding helpers shared by the
// CLI commands and the attestation envelope codecs.
package format

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// EncodeBase64URL encodes bytes as base64url without padding.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64URL decodes a base64url-encoded string (with or without padding).
func DecodeBase64URL(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.URLEncoding.DecodeString(s)
	}
	return b, err
}

// EncodeBase64Std encodes bytes as standard base64 with padding. Attestation
// signatures use this form for compatibility with previously issued records.
func EncodeBase64Std(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64Std decodes a standard base64-encoded string.
func DecodeBase64Std(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		b, err = base64.RawStdEncoding.DecodeString(s)
	}
	return b, err
}

// EncodeHex encodes bytes as lowercase hex.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

func isHex(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

// DecodeHexOrBase64URL tries hex first, then base64url.
func DecodeHexOrBase64URL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if isHex(s) {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return DecodeBase64URL(s)
}
