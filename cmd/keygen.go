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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dominikschlosser/certverify/internal/keys"
)

var keygenOutDir string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a P-256 issuer signing keypair",
	Long:  "Generates an ECDSA P-256 keypair and writes private.pem and public.pem to the output directory. The private key signs attestations at issuance; the public key is distributed for verification.",
	Args:  cobra.NoArgs,
	RunE:  runKeygen,
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOutDir, "out", "o", ".", "Output directory for the key files")
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	priv, err := keys.Generate()
	if err != nil {
		return fmt.Errorf("generating keypair: %w", err)
	}

	privPEM, err := keys.MarshalPrivatePEM(priv)
	if err != nil {
		return fmt.Errorf("encoding private key: %w", err)
	}
	pubPEM, err := keys.MarshalPublicPEM(&priv.PublicKey)
	if err != nil {
		return fmt.Errorf("encoding public key: %w", err)
	}

	if err := os.MkdirAll(keygenOutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	privPath := filepath.Join(keygenOutDir, "private.pem")
	pubPath := filepath.Join(keygenOutDir, "public.pem")

	if err := os.WriteFile(privPath, []byte(privPEM), 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(pubPath, []byte(pubPEM), 0o644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	fmt.Printf("Private key: %s\n", privPath)
	fmt.Printf("Public key:  %s\n", pubPath)
	return nil
}
