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

package attest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/sha256"
	"strings"
	"time"

	"github.com/dominikschlosser/certverify/internal/format"
	"github.com/dominikschlosser/certverify/internal/keys"
)

// IntegrityCheck is the result of validating scanned or encoded attestation
// content. All outcomes are explicit fields; verification never signals
// failure by panicking or returning partial state.
type IntegrityCheck struct {
	QRDetected         bool     `json:"qr_detected"`
	QRDecoded          bool     `json:"qr_decoded"`
	Payload            *Payload `json:"payload,omitempty"`
	SignatureValid     bool     `json:"signature_valid"`
	IssuerVerified     bool     `json:"issuer_verified"`
	CertificateIDMatch bool     `json:"certificate_id_match"`
	IssueDateMatch     bool     `json:"issue_date_match"`
	ErrorMessage       string   `json:"error_message,omitempty"`
}

// VerifyScan validates decoded scan content. Three content forms are
// accepted:
//
//   - a verification URL (link mode), resolved to a stored attestation
//   - a JSON SignedAttestation envelope (self-contained mode)
//   - a base64url COSE_Sign1 envelope (compact self-contained mode)
//
// Malformed content fails closed: QRDetected is set, QRDecoded is not.
func (s *Service) VerifyScan(content string, extracted map[string]string) IntegrityCheck {
	content = strings.TrimSpace(content)
	if content == "" {
		return IntegrityCheck{QRDetected: true, ErrorMessage: "empty scan content"}
	}

	switch {
	case strings.HasPrefix(content, "http://") || strings.HasPrefix(content, "https://"):
		return s.verifyLink(content, extracted)
	case strings.HasPrefix(content, "{"):
		sa, err := DecodeEnvelope([]byte(content))
		if err != nil {
			return IntegrityCheck{QRDetected: true, ErrorMessage: "invalid JSON in scan content"}
		}
		return s.VerifyAttestation(sa, extracted)
	default:
		return s.verifyCOSE(content, extracted)
	}
}

// verifyLink resolves link-mode content through the configured resolver.
// A scanned link is not itself proof that a signed payload exists; without a
// successful lookup the check fails closed.
func (s *Service) verifyLink(url string, extracted map[string]string) IntegrityCheck {
	if s.resolver == nil {
		return IntegrityCheck{QRDetected: true, ErrorMessage: "link-mode content requires a server-side attestation lookup"}
	}
	sa, ok := s.resolver.ResolveAttestation(url)
	if !ok {
		return IntegrityCheck{QRDetected: true, ErrorMessage: "no stored attestation for verification link"}
	}
	return s.VerifyAttestation(sa, extracted)
}

// VerifyAttestation re-canonicalizes the payload and checks the signature,
// issuer trust, and field consistency. Signature validity and issuer trust
// are independent results: an unknown issuer does not invalidate a
// mathematically correct signature, and vice versa.
func (s *Service) VerifyAttestation(sa *SignedAttestation, extracted map[string]string) IntegrityCheck {
	check := IntegrityCheck{QRDetected: true, QRDecoded: true, Payload: &sa.Payload}

	check.SignatureValid = s.verifySignature(sa)
	check.IssuerVerified = s.registry.IsTrusted(sa.Payload.IssuerID)

	if extracted != nil {
		check.CertificateIDMatch = matchCertificateID(sa.Payload.Data.CertificateID, extracted["certificate_id"])
		check.IssueDateMatch = matchIssueDate(sa.Payload.Data.IssueDate, extracted["issue_date"])
	}

	return check
}

func (s *Service) verifySignature(sa *SignedAttestation) bool {
	pub := s.publicKeyFor(sa)
	if pub == nil {
		// Missing or unknown key: fail closed, never default to valid.
		return false
	}

	sig, err := format.DecodeBase64Std(sa.Signature)
	if err != nil {
		return false
	}

	canonical, err := sa.Payload.Canonical()
	if err != nil {
		return false
	}

	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return false
	}

	digest := sha256.Sum256(canonical)
	return ecdsa.VerifyASN1(ecPub, digest[:], sig)
}

// publicKeyFor prefers the key embedded in the attestation, falling back to
// the registry entry for the payload's issuer.
func (s *Service) publicKeyFor(sa *SignedAttestation) crypto.PublicKey {
	if sa.PublicKey != "" {
		if pub, err := keys.ParsePublicKey([]byte(sa.PublicKey)); err == nil {
			return pub
		}
	}
	return s.registry.PublicKey(sa.Payload.IssuerID)
}

func matchCertificateID(fromPayload, fromImage string) bool {
	a := strings.ToUpper(strings.TrimSpace(fromPayload))
	b := strings.ToUpper(strings.TrimSpace(fromImage))
	return a != "" && a == b
}

func matchIssueDate(fromPayload, fromImage string) bool {
	a := normalizeDate(fromPayload)
	b := normalizeDate(fromImage)
	return a != "" && a == b
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "01/02/2006", "02-01-2006"}

// normalizeDate reformats common date layouts to ISO 8601 for comparison.
// Unparseable values are compared as trimmed strings.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}
