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

	"github.com/spf13/cobra"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/forensics"
	"github.com/dominikschlosser/certverify/internal/keys"
	"github.com/dominikschlosser/certverify/internal/output"
	"github.com/dominikschlosser/certverify/internal/pipeline"
)

var (
	verifyKeyFile    string
	verifyDBPath     string
	verifyExtraction string
	verifySeals      string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <image>",
	Short: "Run the full verification pipeline over a certificate image",
	Long:  "Runs image forensics, QR attestation validation, and record-database matching over a certificate image, then fuses the evidence into a risk assessment and final decision. Extraction and seal-detection evidence can be supplied as JSON files.",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyKeyFile, "key", "k", "", "Trusted issuer public key (PEM or JWK)")
	verifyCmd.Flags().StringVar(&verifyDBPath, "db", "", "Record database path")
	verifyCmd.Flags().StringVar(&verifyExtraction, "extraction", "", "JSON file with extracted certificate fields")
	verifyCmd.Flags().StringVar(&verifySeals, "seals", "", "JSON file with seal/signature detection evidence")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading certificate image: %w", err)
	}

	extraction, err := loadExtraction(verifyExtraction)
	if err != nil {
		return err
	}
	seals, err := loadSeals(verifySeals)
	if err != nil {
		return err
	}

	registry, err := verifyRegistry(verifyKeyFile)
	if err != nil {
		return err
	}

	records, err := openRecords(verifyDBPath)
	if err != nil {
		return err
	}
	if records != nil {
		defer records.Close()
	}

	var resolver attest.Resolver
	if records != nil {
		resolver = records
	}
	service := attest.NewService(registry, resolver)

	logger, err := pipeline.NewLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	p := pipeline.New(forensics.NewEngine(logger), service, records, logger)
	result := p.Verify(cmd.Context(), image, extraction, seals)

	output.PrintResult(result, outputOptions())
	return nil
}

// verifyRegistry builds a verification-side registry: a trusted public key
// only, no signing material.
func verifyRegistry(keyPath string) (*attest.Registry, error) {
	if keyPath == "" {
		// Verification still works against keys embedded in envelopes;
		// issuer trust then reports false.
		return attest.NewRegistryWithDefault(attest.IssuerKey{}), nil
	}
	pub, err := keys.LoadPublicKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading issuer public key: %w", err)
	}
	return attest.NewRegistryWithDefault(attest.IssuerKey{
		KeyID:   "default_key_001",
		Public:  pub,
		Trusted: true,
	}), nil
}
