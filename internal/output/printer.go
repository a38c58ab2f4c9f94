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

// Package output renders verification results for the terminal.
package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/forensics"
	"github.com/dominikschlosser/certverify/internal/fusion"
	"github.com/dominikschlosser/certverify/internal/pipeline"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgYellow)
	valueColor   = color.New(color.FgWhite)
	dimColor     = color.New(color.Faint)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
)

// PrintResult prints a complete verification result to the terminal.
func PrintResult(r *pipeline.Result, opts Options) {
	if opts.JSON {
		PrintJSON(r)
		return
	}

	headerColor.Println("Certificate Verification")
	headerColor.Println(strings.Repeat("─", 50))
	printKV("Verification ID", r.VerificationID, 1)
	printKV("Elapsed", fmt.Sprintf("%.2fs", r.ElapsedSeconds), 1)

	if r.Forensics != nil {
		printForensics(r.Forensics, opts)
	}
	if r.QRCheck != nil {
		printIntegrityCheck(r.QRCheck)
	}
	if r.Database != nil {
		printDatabaseMatch(r.Database)
	}

	printAssessment(&r.Assessment)
	printDecision(&r.Decision)

	fmt.Println()
}

// PrintForensics prints a standalone forensic report.
func PrintForensics(rep *forensics.Report, opts Options) {
	if opts.JSON {
		PrintJSON(rep)
		return
	}

	headerColor.Println("Forensic Analysis")
	headerColor.Println(strings.Repeat("─", 50))
	printForensics(rep, opts)
	fmt.Println()
}

func printForensics(rep *forensics.Report, opts Options) {
	printSection("Forensic Analysis")
	printScore("Copy-Move", rep.CopyMoveScore)
	printScore("Error Level", rep.ELAScore)
	printScore("Double Compression", rep.CompressionScore)
	printScore("Noise Consistency", rep.NoiseScore)
	printScore("Resampling", rep.ResamplingScore)
	printScore("JPEG Artifacts", rep.JPEGArtifactScore)
	printScore("Tamper Probability", rep.TamperProbability)

	if len(rep.TamperTypes) > 0 {
		for _, t := range rep.TamperTypes {
			warnColor.Printf("  ⚠ %s\n", strings.ReplaceAll(string(t), "_", " "))
		}
	}
	if len(rep.SuspiciousRegions) > 0 {
		dimColor.Printf("  %d suspicious region(s)\n", len(rep.SuspiciousRegions))
		if opts.Verbose {
			for _, b := range rep.SuspiciousRegions {
				dimColor.Printf("    [%d,%d → %d,%d]\n", b.X0, b.Y0, b.X1, b.Y1)
			}
		}
	}
	if rep.HashMatch != nil {
		if *rep.HashMatch {
			successColor.Println("  ✓ Image hash matches registered original")
		} else {
			errorColor.Println("  ✗ Image hash mismatch")
		}
	}
	if opts.Verbose && rep.SHA256 != "" {
		printKV("SHA-256", rep.SHA256, 1)
		printKV("Perceptual Hash", rep.PerceptualHash, 1)
	}
	for _, e := range rep.DetectorErrors {
		dimColor.Printf("  detector error: %s\n", e)
	}
}

// PrintIntegrityCheck prints a standalone QR attestation check.
func PrintIntegrityCheck(check *attest.IntegrityCheck, opts Options) {
	if opts.JSON {
		PrintJSON(check)
		return
	}

	headerColor.Println("Attestation Check")
	headerColor.Println(strings.Repeat("─", 50))
	printIntegrityCheck(check)
	fmt.Println()
}

func printIntegrityCheck(check *attest.IntegrityCheck) {
	printSection("QR Attestation")
	printFlag("QR decoded", check.QRDecoded)
	if check.QRDecoded {
		printFlag("Signature valid", check.SignatureValid)
		printFlag("Issuer trusted", check.IssuerVerified)
		printFlag("Certificate ID match", check.CertificateIDMatch)
		printFlag("Issue date match", check.IssueDateMatch)
	}
	if check.Payload != nil {
		printKV("Issuer", check.Payload.IssuerID, 1)
		printKV("Certificate ID", check.Payload.Data.CertificateID, 1)
	}
	if check.ErrorMessage != "" {
		errorColor.Printf("  ✗ %s\n", check.ErrorMessage)
	}
}

func printDatabaseMatch(db *fusion.DatabaseMatch) {
	printSection("Database Match")
	printFlag("Record found", db.MatchFound)
	if db.MatchFound {
		printScore("Match confidence", db.Confidence)
	}
	for _, d := range db.Discrepancies {
		warnColor.Printf("  ⚠ %s\n", d)
	}
}

func printAssessment(a *fusion.Assessment) {
	printSection("Risk Assessment")
	printScore("Extraction", a.ExtractionScore)
	printScore("Database", a.DatabaseScore)
	printScore("Forensic", a.ForensicScore)
	printScore("Signature", a.SignatureScore)
	printScore("QR Integrity", a.QRScore)
	printScore("Overall", a.OverallScore)
	printScore("Confidence", a.Confidence)

	switch a.RiskLevel {
	case fusion.RiskLow:
		successColor.Printf("  Risk level: %s\n", a.RiskLevel)
	case fusion.RiskMedium:
		warnColor.Printf("  Risk level: %s\n", a.RiskLevel)
	default:
		errorColor.Printf("  Risk level: %s\n", a.RiskLevel)
	}

	for _, f := range a.RiskFactors {
		warnColor.Printf("  ⚠ %s\n", f)
	}
	for _, ind := range a.AuthenticityIndicators {
		successColor.Printf("  ✓ %s\n", ind)
	}
}

func printDecision(d *fusion.Decision) {
	printSection("Decision")
	switch d.Status {
	case fusion.StatusVerified:
		successColor.Printf("  ✓ %s\n", d.Status)
	case fusion.StatusRequiresReview:
		warnColor.Printf("  ⚠ %s\n", d.Status)
	default:
		errorColor.Printf("  ✗ %s\n", d.Status)
	}
	printKV("Rationale", d.Rationale, 1)
	if d.RequiresManualReview {
		warnColor.Println("  Manual review required")
	}
	for _, r := range d.EscalationReasons {
		dimColor.Printf("    - %s\n", r)
	}
}

func printSection(title string) {
	fmt.Println()
	headerColor.Printf("┌ %s\n", title)
}

func printKV(key, value string, indent int) {
	prefix := strings.Repeat("  ", indent)
	labelColor.Printf("%s%s: ", prefix, key)
	valueColor.Println(value)
}

func printScore(label string, v float64) {
	labelColor.Printf("  %s: ", label)
	valueColor.Printf("%.2f\n", v)
}

func printFlag(label string, ok bool) {
	if ok {
		successColor.Printf("  ✓ %s\n", label)
	} else {
		errorColor.Printf("  ✗ %s\n", label)
	}
}

// PrintError prints an error message.
func PrintError(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorColor.Sprint("Error:"), msg)
}
