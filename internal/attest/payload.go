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

// Package attest produces and verifies cryptographically signed certificate
// payloads. Signatures are P-256 ECDSA over the canonical JSON form of the
// payload; the canonical form must stay byte-compatible with previously
// issued attestations, so canonicalization is sorted-key compact JSON with
// empty fields omitted and non-ASCII runes escaped.
package attest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// PayloadVersion is the current attestation payload schema version.
const PayloadVersion = "1.0"

// PayloadType tags certificate-verification payloads.
const PayloadType = "certificate_verification"

// CertificateFields holds the certificate facts bound into an attestation.
// All values are strings: canonical serialization must not depend on float
// or integer formatting rules of any one language.
type CertificateFields struct {
	CertificateID string `json:"certificate_id,omitempty"`
	StudentName   string `json:"student_name,omitempty"`
	RollNo        string `json:"roll_no,omitempty"`
	CourseName    string `json:"course_name,omitempty"`
	Institution   string `json:"institution,omitempty"`
	Department    string `json:"department,omitempty"`
	IssueDate     string `json:"issue_date,omitempty"`
	Year          string `json:"year,omitempty"`
	Grade         string `json:"grade,omitempty"`
	CGPA          string `json:"cgpa,omitempty"`
	Status        string `json:"status,omitempty"`
	Source        string `json:"source,omitempty"`
}

// Payload is the canonical set of certificate facts bound for signing.
type Payload struct {
	Version         string            `json:"version"`
	Type            string            `json:"type"`
	IssuerID        string            `json:"issuer_id"`
	IssuedAt        string            `json:"issued_at"`
	ExpiresAt       string            `json:"expires_at,omitempty"`
	Data            CertificateFields `json:"data"`
	VerificationURL string            `json:"verification_url,omitempty"`
	ImageHash       string            `json:"image_hash,omitempty"`
}

// Canonical returns the deterministic byte form of the payload: JSON with
// lexicographically sorted keys, compact separators, no HTML escaping, and
// every rune above U+007F escaped as \uXXXX (surrogate pairs beyond the BMP).
// The ASCII escaping keeps the bytes identical to what the issuing system
// signs, so previously issued attestations with accented or CJK names still
// verify. Re-canonicalizing the result yields identical bytes.
func (p *Payload) Canonical() ([]byte, error) {
	structBytes, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	// Round-trip through a map so keys serialize in sorted order regardless
	// of struct field declaration order.
	var m map[string]any
	if err := json.Unmarshal(structBytes, &m); err != nil {
		return nil, fmt.Errorf("re-reading payload: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("canonicalizing payload: %w", err)
	}
	return escapeNonASCII(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// escapeNonASCII rewrites runes above U+007F as \uXXXX escapes. Non-ASCII
// bytes only occur inside JSON string literals, so a single pass over the
// encoded document is safe.
func escapeNonASCII(in []byte) []byte {
	ascii := true
	for _, b := range in {
		if b >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return in
	}

	var out bytes.Buffer
	out.Grow(len(in))
	for i := 0; i < len(in); {
		r, size := utf8.DecodeRune(in[i:])
		if r < utf8.RuneSelf {
			out.WriteByte(in[i])
			i++
			continue
		}
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&out, `\u%04x\u%04x`, hi, lo)
		} else {
			fmt.Fprintf(&out, `\u%04x`, r)
		}
		i += size
	}
	return out.Bytes()
}

// ParsePayload decodes canonical payload bytes.
func ParsePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	return &p, nil
}
