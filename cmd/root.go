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
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dominikschlosser/certverify/internal/output"
)

var (
	jsonOutput bool
	noColor    bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "certverify",
	Short: "Issue, verify, and forensically analyze signed certificate images",
	Long:  "A CLI for certificate authenticity checking. Signs attestation QR codes at issuance time, then verifies presented certificate images with image forensics, cryptographic attestation checks, record-database matching, and fused risk scoring.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

func outputOptions() output.Options {
	return output.Options{
		JSON:    jsonOutput,
		NoColor: noColor,
		Verbose: verbose,
	}
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		output.PrintError(err.Error())
		return err
	}
	return nil
}
