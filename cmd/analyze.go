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

	"github.com/dominikschlosser/certverify/internal/forensics"
	"github.com/dominikschlosser/certverify/internal/output"
	"github.com/dominikschlosser/certverify/internal/pipeline"
)

var analyzeReferenceHash string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Run forensic tamper detection over a certificate image",
	Long:  "Runs the six forensic detectors (copy-move, error-level analysis, double compression, noise consistency, resampling, JPEG artifacts) over an image and reports tamper probability, tamper types, and suspicious regions. With --reference-hash, the image's SHA-256 is checked against the registered original.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeReferenceHash, "reference-hash", "", "Expected SHA-256 of the registered original image")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	logger, err := pipeline.NewLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	engine := forensics.NewEngine(logger)
	report := engine.Analyze(cmd.Context(), image, analyzeReferenceHash)

	output.PrintForensics(&report, outputOptions())
	return nil
}
