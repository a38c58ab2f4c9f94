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
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/imaging"
	"github.com/dominikschlosser/certverify/internal/output"
	"github.com/dominikschlosser/certverify/internal/qr"
	"github.com/dominikschlosser/certverify/internal/store"
)

var (
	issueFieldsFile string
	issueKeyFile    string
	issueKeyID      string
	issueIssuerID   string
	issueMode       string
	issueURL        string
	issueImageFile  string
	issueQROut      string
	issueDBPath     string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Sign a certificate attestation and generate its QR code",
	Long: `Signs an attestation over the certificate fields and emits QR content in one of three modes:

  link   - the QR carries only the verification URL; the signed envelope is stored in the record database
  embed  - the QR carries the full JSON SignedAttestation envelope
  cose   - the QR carries a compact base64url COSE_Sign1 envelope

With --image, the certificate image's hashes are bound into the payload and registered alongside the record.`,
	Args: cobra.NoArgs,
	RunE: runIssue,
}

func init() {
	issueCmd.Flags().StringVarP(&issueFieldsFile, "fields", "f", "", "JSON file with the certificate fields (required)")
	issueCmd.Flags().StringVarP(&issueKeyFile, "key", "k", "", "Issuer private key (PEM); generated if omitted")
	issueCmd.Flags().StringVar(&issueKeyID, "key-id", "", "Key id recorded in the attestation")
	issueCmd.Flags().StringVar(&issueIssuerID, "issuer", attest.DefaultIssuerID, "Issuer id")
	issueCmd.Flags().StringVarP(&issueMode, "mode", "m", "embed", "QR content mode: link, embed, or cose")
	issueCmd.Flags().StringVar(&issueURL, "url", "", "Verification URL bound into the payload (required for link mode)")
	issueCmd.Flags().StringVar(&issueImageFile, "image", "", "Certificate image whose hashes are bound into the payload")
	issueCmd.Flags().StringVar(&issueQROut, "qr-out", "", "Write the QR code PNG to this path")
	issueCmd.Flags().StringVar(&issueDBPath, "db", "", "Record database path")
	issueCmd.MarkFlagRequired("fields")
	rootCmd.AddCommand(issueCmd)
}

func runIssue(cmd *cobra.Command, args []string) error {
	fieldsData, err := os.ReadFile(issueFieldsFile)
	if err != nil {
		return fmt.Errorf("reading fields file: %w", err)
	}
	var fields attest.CertificateFields
	if err := json.Unmarshal(fieldsData, &fields); err != nil {
		return fmt.Errorf("parsing fields file: %w", err)
	}

	registry, err := buildRegistry(issueKeyFile, issueKeyID)
	if err != nil {
		return err
	}
	if issueIssuerID != attest.DefaultIssuerID {
		key := registry.SigningKey(attest.DefaultIssuerID)
		registry = registry.WithIssuer(issueIssuerID, key)
	}

	records, err := openRecords(issueDBPath)
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

	payload := attest.Payload{
		IssuerID:        issueIssuerID,
		Data:            fields,
		VerificationURL: issueURL,
	}

	var record store.CertificateRecord
	record.Fields = fields
	if issueImageFile != "" {
		encoded, err := os.ReadFile(issueImageFile)
		if err != nil {
			return fmt.Errorf("reading certificate image: %w", err)
		}
		raster, err := imaging.Decode(encoded)
		if err != nil {
			return fmt.Errorf("decoding certificate image: %w", err)
		}
		hashes, err := attest.ComputeImageHashes(encoded, raster.Img)
		if err != nil {
			return fmt.Errorf("hashing certificate image: %w", err)
		}
		payload.ImageHash = hashes.SHA256
		record.ImageSHA256 = hashes.SHA256
		record.ImagePerceptual = hashes.Perceptual
	}

	var content string
	var signed *attest.SignedAttestation

	switch issueMode {
	case "link":
		if issueURL == "" {
			return fmt.Errorf("link mode requires --url")
		}
		if records == nil {
			return fmt.Errorf("link mode requires --db so the attestation can be resolved later")
		}
		signed, err = service.Sign(payload, issueIssuerID)
		if err != nil {
			return fmt.Errorf("signing attestation: %w", err)
		}
		content = issueURL
	case "embed":
		signed, err = service.Sign(payload, issueIssuerID)
		if err != nil {
			return fmt.Errorf("signing attestation: %w", err)
		}
		envelope, err := attest.EncodeEnvelope(signed)
		if err != nil {
			return fmt.Errorf("encoding envelope: %w", err)
		}
		content = string(envelope)
	case "cose":
		content, err = service.SignCOSE(payload, issueIssuerID)
		if err != nil {
			return fmt.Errorf("signing COSE envelope: %w", err)
		}
	default:
		return fmt.Errorf("unknown mode %q (expected link, embed, or cose)", issueMode)
	}

	if records != nil {
		ctx := context.Background()
		if err := records.PutCertificate(ctx, record); err != nil {
			return err
		}
		if signed != nil && issueURL != "" {
			if err := records.PutAttestation(ctx, issueURL, signed); err != nil {
				return err
			}
		}
	}

	if issueQROut != "" {
		if err := qr.WriteFile(issueQROut, content, qr.DefaultSize); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "QR code written to %s\n", issueQROut)
	}

	if jsonOutput {
		out := map[string]any{"mode": issueMode, "qr_content": content}
		if signed != nil {
			out["attestation"] = signed
		}
		output.PrintJSON(out)
		return nil
	}

	fmt.Println(content)
	return nil
}
