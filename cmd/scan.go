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
	"github.com/spf13/cobra"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/format"
	"github.com/dominikschlosser/certverify/internal/output"
	"github.com/dominikschlosser/certverify/internal/qr"
)

var (
	scanKeyFile    string
	scanDBPath     string
	scanExtraction string
	scanRaw        bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <image|content>",
	Short: "Scan a certificate image's QR code and check its attestation",
	Long:  "Decodes the QR code from a certificate image and validates the attestation it carries: signature, issuer trust, and consistency with extracted fields. Skips image forensics; use verify for the full pipeline. With --raw the argument is already-decoded QR content instead of an image (file path, URL, raw string, or - for stdin).",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanKeyFile, "key", "k", "", "Trusted issuer public key (PEM or JWK)")
	scanCmd.Flags().StringVar(&scanDBPath, "db", "", "Record database path for link-mode lookups")
	scanCmd.Flags().StringVar(&scanExtraction, "extraction", "", "JSON file with extracted certificate fields")
	scanCmd.Flags().BoolVar(&scanRaw, "raw", false, "Treat the argument as QR content instead of an image")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}

	var content string
	var err error
	if scanRaw || arg == "" || arg == "-" {
		content, err = format.ReadInput(arg)
	} else {
		content, err = qr.ScanFile(arg)
	}
	if err != nil {
		return err
	}

	extraction, err := loadExtraction(scanExtraction)
	if err != nil {
		return err
	}
	var fields map[string]string
	if extraction != nil {
		fields = extraction.Fields
	}

	registry, err := verifyRegistry(scanKeyFile)
	if err != nil {
		return err
	}

	records, err := openRecords(scanDBPath)
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

	check := service.VerifyScan(content, fields)
	output.PrintIntegrityCheck(&check, outputOptions())
	return nil
}
