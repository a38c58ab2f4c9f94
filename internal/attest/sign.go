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
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/dominikschlosser/certverify/internal/format"
	"github.com/dominikschlosser/certverify/internal/keys"
)

// AlgorithmTag identifies the signing scheme embedded in attestations.
const AlgorithmTag = "ECDSA"

// SignedAttestation binds a payload to its issuer's cryptographic identity.
// The embedded public key makes the attestation self-describing: verification
// does not require an out-of-band key lookup, though the issuer-registry
// cross-check is still performed separately.
type SignedAttestation struct {
	Payload   Payload `json:"payload"`
	Signature string  `json:"signature"`
	PublicKey string  `json:"public_key"`
	KeyID     string  `json:"key_id"`
	Algorithm string  `json:"algorithm"`
	SignedAt  string  `json:"signed_at"`
}

// Resolver looks up a stored attestation for link-mode scan content
// (a verification URL or certificate id). Implementations are external
// collaborators, typically backed by the record store.
type Resolver interface {
	ResolveAttestation(ref string) (*SignedAttestation, bool)
}

// Service signs and verifies attestations against an injected issuer
// registry. All operations are synchronous and side-effect free.
type Service struct {
	registry *Registry
	resolver Resolver

	// timeNow is overridable in tests.
	timeNow func() time.Time
}

// NewService creates an attestation service over the given registry.
// resolver may be nil; link-mode scans then fail closed.
func NewService(registry *Registry, resolver Resolver) *Service {
	return &Service{
		registry: registry,
		resolver: resolver,
		timeNow:  time.Now,
	}
}

// Registry returns the service's issuer registry.
func (s *Service) Registry() *Registry { return s.registry }

// Sign canonicalizes the payload and signs it with the issuer's private key
// (falling back to the default issuer key for unconfigured issuers). The
// payload's IssuerID, IssuedAt, Version, and Type fields are populated if
// unset.
func (s *Service) Sign(payload Payload, issuerID string) (*SignedAttestation, error) {
	if issuerID == "" {
		issuerID = DefaultIssuerID
	}
	key := s.registry.SigningKey(issuerID)
	if key.Private == nil {
		return nil, fmt.Errorf("no signing key available for issuer %q", issuerID)
	}

	now := s.timeNow().UTC()
	if payload.Version == "" {
		payload.Version = PayloadVersion
	}
	if payload.Type == "" {
		payload.Type = PayloadType
	}
	if payload.IssuerID == "" {
		payload.IssuerID = issuerID
	}
	if payload.IssuedAt == "" {
		payload.IssuedAt = now.Format(time.RFC3339)
	}
	if payload.ExpiresAt == "" {
		payload.ExpiresAt = now.AddDate(10, 0, 0).Format(time.RFC3339)
	}

	canonical, err := payload.Canonical()
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(canonical)
	sig, err := ecdsa.SignASN1(rand.Reader, key.Private, digest[:])
	if err != nil {
		return nil, fmt.Errorf("signing payload: %w", err)
	}

	pubPEM, err := keys.MarshalPublicPEM(key.Public)
	if err != nil {
		return nil, err
	}

	return &SignedAttestation{
		Payload:   payload,
		Signature: format.EncodeBase64Std(sig),
		PublicKey: pubPEM,
		KeyID:     key.KeyID,
		Algorithm: AlgorithmTag,
		SignedAt:  now.Format(time.RFC3339),
	}, nil
}
