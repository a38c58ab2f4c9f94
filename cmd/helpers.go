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

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/fusion"
	"github.com/dominikschlosser/certverify/internal/keys"
	"github.com/dominikschlosser/certverify/internal/pipeline"
	"github.com/dominikschlosser/certverify/internal/store"
)

// buildRegistry loads the issuer signing key from keyPath, or generates an
// ephemeral keypair when no path is given.
func buildRegistry(keyPath, keyID string) (*attest.Registry, error) {
	if keyPath == "" {
		return attest.NewRegistry()
	}

	priv, err := keys.LoadPrivateKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}
	if keyID == "" {
		keyID = "default_key_001"
	}
	return attest.NewRegistryWithDefault(attest.IssuerKey{
		KeyID:   keyID,
		Private: priv,
		Public:  &priv.PublicKey,
		Trusted: true,
	}), nil
}

// openRecords opens the record store at dbPath, or returns nil when no
// database is configured.
func openRecords(dbPath string) (*store.Store, error) {
	if dbPath == "" {
		return nil, nil
	}
	zl, err := pipeline.NewLogger(verbose)
	if err != nil {
		return nil, err
	}
	return store.Open(dbPath, zl)
}

// loadExtraction reads an extraction evidence JSON file, either a bare
// fields object or a full {"fields":..., "field_confidences":...} document.
func loadExtraction(path string) (*fusion.Extraction, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading extraction file: %w", err)
	}

	var extraction fusion.Extraction
	if err := json.Unmarshal(data, &extraction); err != nil {
		return nil, fmt.Errorf("parsing extraction file: %w", err)
	}
	if extraction.Fields == nil {
		var fields map[string]string
		if err := json.Unmarshal(data, &fields); err == nil {
			extraction.Fields = fields
		}
	}
	return &extraction, nil
}

// loadSeals reads a seal/signature evidence JSON file.
func loadSeals(path string) (*fusion.SealSignature, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seals file: %w", err)
	}
	var seals fusion.SealSignature
	if err := json.Unmarshal(data, &seals); err != nil {
		return nil, fmt.Errorf("parsing seals file: %w", err)
	}
	return &seals, nil
}
