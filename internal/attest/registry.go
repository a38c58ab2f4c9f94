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
	"fmt"

	"github.com/dominikschlosser/certverify/internal/keys"
)

// DefaultIssuerID is the issuer used when signing for an unconfigured issuer.
const DefaultIssuerID = "default"

// IssuerKey is one issuer's signing key material and trust flag.
type IssuerKey struct {
	KeyID   string
	Private *ecdsa.PrivateKey
	Public  crypto.PublicKey
	Trusted bool
}

// Registry maps issuer ids to key material. A Registry is immutable once
// constructed: updates return a new instance, so key rotation is never
// visible mid-request.
type Registry struct {
	issuers map[string]IssuerKey
}

// NewRegistry creates a registry containing only a generated default issuer
// keypair.
func NewRegistry() (*Registry, error) {
	priv, err := keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating default issuer key: %w", err)
	}
	return NewRegistryWithDefault(IssuerKey{
		KeyID:   "default_key_001",
		Private: priv,
		Public:  &priv.PublicKey,
		Trusted: true,
	}), nil
}

// NewRegistryWithDefault creates a registry seeded with the given default
// issuer key.
func NewRegistryWithDefault(def IssuerKey) *Registry {
	return &Registry{issuers: map[string]IssuerKey{DefaultIssuerID: def}}
}

// WithIssuer returns a copy of the registry with the issuer added or
// replaced. The receiver is left untouched.
func (r *Registry) WithIssuer(issuerID string, key IssuerKey) *Registry {
	next := make(map[string]IssuerKey, len(r.issuers)+1)
	for id, k := range r.issuers {
		next[id] = k
	}
	next[issuerID] = key
	return &Registry{issuers: next}
}

// Lookup returns the key material registered for an issuer.
func (r *Registry) Lookup(issuerID string) (IssuerKey, bool) {
	k, ok := r.issuers[issuerID]
	return k, ok
}

// PublicKey returns the registered public key for an issuer, or nil if the
// issuer is unknown.
func (r *Registry) PublicKey(issuerID string) crypto.PublicKey {
	if k, ok := r.issuers[issuerID]; ok {
		return k.Public
	}
	return nil
}

// IsTrusted reports whether the issuer id is present and marked trusted.
// Trust is distinct from cryptographic validity: a signature may verify
// against its embedded key while the issuer remains unknown to us.
func (r *Registry) IsTrusted(issuerID string) bool {
	k, ok := r.issuers[issuerID]
	return ok && k.Trusted
}

// SigningKey returns the issuer's key, falling back to the default issuer
// keypair for unconfigured issuers.
func (r *Registry) SigningKey(issuerID string) IssuerKey {
	if k, ok := r.issuers[issuerID]; ok && k.Private != nil {
		return k
	}
	return r.issuers[DefaultIssuerID]
}

// IssuerIDs lists all registered issuer ids.
func (r *Registry) IssuerIDs() []string {
	ids := make([]string, 0, len(r.issuers))
	for id := range r.issuers {
		ids = append(ids, id)
	}
	return ids
}
