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
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"

	"github.com/dominikschlosser/certverify/internal/format"
	"github.com/dominikschlosser/certverify/internal/keys"
)

// headerLabelPublicKey carries the issuer's PEM public key in the
// unprotected COSE headers, keeping compact envelopes self-describing like
// their JSON counterparts.
const headerLabelPublicKey = "public_key"

// EncodeEnvelope serializes a SignedAttestation as the compact JSON form
// embedded in self-contained scannable codes.
func EncodeEnvelope(sa *SignedAttestation) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(sa); err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeEnvelope parses a JSON SignedAttestation envelope.
func DecodeEnvelope(data []byte) (*SignedAttestation, error) {
	var sa SignedAttestation
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if sa.Signature == "" {
		return nil, fmt.Errorf("envelope has no signature")
	}
	return &sa, nil
}

// SignCOSE signs the payload and wraps it in a base64url COSE_Sign1
// envelope. The COSE payload is the canonical JSON payload bytes, so the
// compact form stays offline-verifiable and consistent with the JSON
// envelope's canonicalization.
func (s *Service) SignCOSE(payload Payload, issuerID string) (string, error) {
	sa, err := s.Sign(payload, issuerID)
	if err != nil {
		return "", err
	}

	key := s.registry.SigningKey(sa.Payload.IssuerID)
	signer, err := cose.NewSigner(cose.AlgorithmES256, key.Private)
	if err != nil {
		return "", fmt.Errorf("creating COSE signer: %w", err)
	}

	canonical, err := sa.Payload.Canonical()
	if err != nil {
		return "", err
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Headers.Protected[cose.HeaderLabelKeyID] = []byte(sa.KeyID)
	msg.Headers.Unprotected[headerLabelPublicKey] = sa.PublicKey
	msg.Payload = canonical

	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return "", fmt.Errorf("COSE signing: %w", err)
	}

	data, err := msg.MarshalCBOR()
	if err != nil {
		return "", fmt.Errorf("marshaling COSE envelope: %w", err)
	}
	return format.EncodeBase64URL(data), nil
}

// verifyCOSE validates a base64url COSE_Sign1 envelope. Undecodable content
// fails closed.
func (s *Service) verifyCOSE(content string, extracted map[string]string) IntegrityCheck {
	data, err := format.DecodeBase64URL(content)
	if err != nil || cbor.Wellformed(data) != nil {
		return IntegrityCheck{QRDetected: true, ErrorMessage: "unrecognized scan content"}
	}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(data); err != nil {
		return IntegrityCheck{QRDetected: true, ErrorMessage: "invalid COSE envelope"}
	}

	payload, err := ParsePayload(msg.Payload)
	if err != nil {
		return IntegrityCheck{QRDetected: true, ErrorMessage: "invalid payload in COSE envelope"}
	}

	check := IntegrityCheck{QRDetected: true, QRDecoded: true, Payload: payload}

	var pub crypto.PublicKey
	if raw, ok := msg.Headers.Unprotected[headerLabelPublicKey]; ok {
		if pem, ok := raw.(string); ok {
			pub, _ = keys.ParsePublicKey([]byte(pem))
		}
	}
	if pub == nil {
		pub = s.registry.PublicKey(payload.IssuerID)
	}

	if ecPub, ok := pub.(*ecdsa.PublicKey); ok {
		if verifier, err := cose.NewVerifier(cose.AlgorithmES256, ecPub); err == nil {
			check.SignatureValid = msg.Verify(nil, verifier) == nil
		}
	}

	check.IssuerVerified = s.registry.IsTrusted(payload.IssuerID)

	if extracted != nil {
		check.CertificateIDMatch = matchCertificateID(payload.Data.CertificateID, extracted["certificate_id"])
		check.IssueDateMatch = matchIssueDate(payload.Data.IssueDate, extracted["issue_date"])
	}

	return check
}
