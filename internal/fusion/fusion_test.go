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

package fusion

import (
	"math"
	"testing"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/forensics"
)

func cleanEvidence() Evidence {
	return Evidence{
		Extraction: &Extraction{
			Fields: map[string]string{
				"student_name":   "Jane Doe",
				"certificate_id": "CERT-2026-001",
				"institution":    "Test University",
				"course_name":    "B.Tech",
			},
			FieldConfidences: map[string]float64{
				"student_name":   0.95,
				"certificate_id": 0.95,
				"institution":    0.95,
				"course_name":    0.95,
			},
		},
		Forensics: &forensics.Report{TamperProbability: 0.05},
		Seals:     &SealSignature{SealsDetected: 1, SignaturesDetected: 1, SealScore: 0.9, SignatureScore: 0.9},
		QR: &attest.IntegrityCheck{
			QRDetected:         true,
			QRDecoded:          true,
			SignatureValid:     true,
			IssuerVerified:     true,
			CertificateIDMatch: true,
			IssueDateMatch:     true,
		},
		Database: &DatabaseMatch{MatchFound: true, Confidence: 0.95},
	}
}

func TestWeights_SumToOne(t *testing.T) {
	var sum float64
	for _, w := range Weights() {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("fusion weights sum to %f, want 1.0", sum)
	}
}

func TestQRScore(t *testing.T) {
	tests := []struct {
		name string
		qr   *attest.IntegrityCheck
		want float64
	}{
		{"absent", nil, 0.5},
		{"detected but undecodable", &attest.IntegrityCheck{QRDetected: true}, 0.2},
		{"decoded only", &attest.IntegrityCheck{QRDetected: true, QRDecoded: true}, 0.5},
		{"decoded with valid signature", &attest.IntegrityCheck{QRDecoded: true, SignatureValid: true}, 0.8},
		{"signature and issuer", &attest.IntegrityCheck{QRDecoded: true, SignatureValid: true, IssuerVerified: true}, 1.0},
		{
			"everything",
			&attest.IntegrityCheck{QRDecoded: true, SignatureValid: true, IssuerVerified: true, CertificateIDMatch: true, IssueDateMatch: true},
			1.0, // capped
		},
		{"id and date only", &attest.IntegrityCheck{QRDecoded: true, CertificateIDMatch: true, IssueDateMatch: true}, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := qrScore(tt.qr); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("qrScore() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestRiskLevel(t *testing.T) {
	tests := []struct {
		overall float64
		want    RiskLevel
	}{
		{0.95, RiskLow},
		{0.8, RiskLow},
		{0.79, RiskMedium},
		{0.6, RiskMedium},
		{0.59, RiskHigh},
		{0.4, RiskHigh},
		{0.39, RiskCritical},
		{0.0, RiskCritical},
	}
	for _, tt := range tests {
		if got := riskLevel(tt.overall); got != tt.want {
			t.Errorf("riskLevel(%f) = %s, want %s", tt.overall, got, tt.want)
		}
	}
}

func TestAssess_ScoreBounds(t *testing.T) {
	assessments := []Assessment{
		Assess(cleanEvidence()),
		Assess(Evidence{Extraction: &Extraction{}, Forensics: &forensics.Report{TamperProbability: 1.0}}),
		Assess(Evidence{Extraction: &Extraction{}, Forensics: &forensics.Report{}}),
	}
	for i, a := range assessments {
		scores := []float64{a.ExtractionScore, a.DatabaseScore, a.ForensicScore, a.SignatureScore, a.QRScore, a.OverallScore, a.Confidence}
		for j, s := range scores {
			if s < 0 || s > 1 {
				t.Errorf("assessment %d score %d = %f out of [0,1]", i, j, s)
			}
		}
	}
}

func TestAssess_MonotonicInForensics(t *testing.T) {
	ev := cleanEvidence()
	clean := Assess(ev)

	ev.Forensics = &forensics.Report{TamperProbability: 0.9}
	dirty := Assess(ev)

	if dirty.OverallScore >= clean.OverallScore {
		t.Errorf("overall score did not drop with tampering: clean %f, dirty %f", clean.OverallScore, dirty.OverallScore)
	}
}

func TestFuse_CleanCertificateVerified(t *testing.T) {
	a, d := Fuse(cleanEvidence())

	if len(a.RiskFactors) != 0 {
		t.Fatalf("unexpected risk factors on clean evidence: %v", a.RiskFactors)
	}
	if a.RiskLevel != RiskLow {
		t.Errorf("RiskLevel = %s, want low", a.RiskLevel)
	}
	if d.Status != StatusVerified {
		t.Errorf("Status = %s, want verified (overall %f, conf %f)", d.Status, a.OverallScore, a.Confidence)
	}
	if d.RequiresManualReview {
		t.Error("RequiresManualReview = true for a clean verified certificate")
	}
}

func TestFuse_TamperHardReject(t *testing.T) {
	hashMismatch := false

	tests := []struct {
		name   string
		mutate func(*Evidence)
	}{
		{"high tamper probability", func(ev *Evidence) {
			ev.Forensics.TamperProbability = 0.9
		}},
		{"hash mismatch", func(ev *Evidence) {
			ev.Forensics.HashMatch = &hashMismatch
		}},
		{"three tamper types", func(ev *Evidence) {
			ev.Forensics.TamperTypes = []forensics.TamperType{
				forensics.TamperCopyMove, forensics.TamperELAAnomaly, forensics.TamperResampling,
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := cleanEvidence()
			tt.mutate(&ev)
			_, d := Fuse(ev)
			if d.Status != StatusTampered {
				t.Errorf("Status = %s, want tampered", d.Status)
			}
			if !d.RequiresManualReview {
				t.Error("tamper verdict did not force escalation")
			}
		})
	}
}

func TestFuse_TamperOverridesGoodScores(t *testing.T) {
	// All other channels perfect; forensics alone must still hard-reject.
	ev := cleanEvidence()
	ev.Forensics = &forensics.Report{TamperProbability: 0.85}

	a, d := Fuse(ev)
	if d.Status != StatusTampered {
		t.Errorf("Status = %s, want tampered despite overall %f", d.Status, a.OverallScore)
	}
}

func TestFuse_SignatureInvalid(t *testing.T) {
	t.Run("decoded but invalid", func(t *testing.T) {
		ev := cleanEvidence()
		ev.QR = &attest.IntegrityCheck{QRDetected: true, QRDecoded: true, SignatureValid: false}
		_, d := Fuse(ev)
		if d.Status != StatusSignatureInvalid {
			t.Errorf("Status = %s, want signature_invalid", d.Status)
		}
	})

	t.Run("no cryptographic evidence at all", func(t *testing.T) {
		ev := cleanEvidence()
		ev.QR = nil
		ev.Seals = &SealSignature{}
		_, d := Fuse(ev)
		if d.Status != StatusSignatureInvalid {
			t.Errorf("Status = %s, want signature_invalid", d.Status)
		}
	})

	t.Run("seals present without QR is not rejected", func(t *testing.T) {
		ev := cleanEvidence()
		ev.QR = nil
		_, d := Fuse(ev)
		if d.Status == StatusSignatureInvalid {
			t.Error("seal evidence alone triggered signature hard-reject")
		}
	})
}

func TestFuse_AutoReject(t *testing.T) {
	ev := Evidence{
		Extraction: &Extraction{Fields: map[string]string{"student_name": "X"}, FieldConfidences: map[string]float64{"student_name": 0.1}},
		Forensics:  &forensics.Report{TamperProbability: 0.75},
		Seals:      &SealSignature{SealsDetected: 1, SignaturesDetected: 1, SealScore: 0.1, SignatureScore: 0.1},
		QR:         &attest.IntegrityCheck{QRDetected: true},
	}

	a, d := Fuse(ev)
	if a.OverallScore > autoRejectThreshold {
		t.Fatalf("test evidence scored %f, expected <= %f", a.OverallScore, autoRejectThreshold)
	}
	if d.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", d.Status)
	}
}

func TestFuse_DefaultRequiresReview(t *testing.T) {
	ev := cleanEvidence()
	// Middling evidence: no database record, mediocre extraction.
	ev.Database = &DatabaseMatch{}
	ev.Extraction.FieldConfidences = map[string]float64{
		"student_name": 0.6, "certificate_id": 0.6, "institution": 0.6, "course_name": 0.6,
	}

	a, d := Fuse(ev)
	if d.Status != StatusRequiresReview {
		t.Fatalf("Status = %s, want requires_review (overall %f)", d.Status, a.OverallScore)
	}
	if !d.RequiresManualReview {
		t.Error("RequiresManualReview = false for review verdict")
	}

	found := false
	for _, r := range d.EscalationReasons {
		if r == "No database match" {
			found = true
		}
	}
	if !found {
		t.Errorf("escalation reasons missing database miss: %v", d.EscalationReasons)
	}
}

func TestFuse_HighScoreWithRiskFactors(t *testing.T) {
	ev := cleanEvidence()
	// One seal count of zero records a risk factor without moving the
	// weighted score much.
	ev.Seals.SealsDetected = 0

	a, d := Fuse(ev)
	if len(a.RiskFactors) == 0 {
		t.Fatal("expected a risk factor for missing seals")
	}
	if d.Status == StatusVerified {
		t.Error("Status = verified despite outstanding risk factors")
	}
}

func TestDecide_HighScoreLowConfidence(t *testing.T) {
	// A high score alone must not trigger the risk factor escalation path
	// when no risk factors exist. Low confidence routes through the default
	// review rule, which names the actual reason.
	a := Assessment{
		OverallScore: 0.90,
		Confidence:   0.50,
		RiskLevel:    RiskLow,
		Weights:      Weights(),
	}
	d := Decide(a, cleanEvidence())

	if d.Status != StatusRequiresReview {
		t.Fatalf("Status = %s, want requires_review", d.Status)
	}
	if d.Rationale == "High score but outstanding risk factors require review" {
		t.Error("risk factor rationale given without risk factors")
	}
	if len(d.EscalationReasons) == 0 {
		t.Fatal("review verdict carries no escalation reasons")
	}
	found := false
	for _, r := range d.EscalationReasons {
		if r == "Low confidence in assessment" {
			found = true
		}
	}
	if !found {
		t.Errorf("escalation reasons missing low confidence: %v", d.EscalationReasons)
	}
}

func TestDecide_MonotonicInOverallScore(t *testing.T) {
	// With fixed evidence, a higher overall score never produces a worse
	// verdict than a lower one.
	ev := cleanEvidence()
	rank := map[VerificationStatus]int{
		StatusFailed:         0,
		StatusRequiresReview: 1,
		StatusVerified:       2,
	}

	prev := -1
	prevScore := 0.0
	for score := 0.0; score <= 1.0+1e-9; score += 0.01 {
		a := Assessment{
			OverallScore: score,
			Confidence:   1.0,
			RiskLevel:    riskLevel(score),
			Weights:      Weights(),
		}
		d := Decide(a, ev)
		r, ok := rank[d.Status]
		if !ok {
			t.Fatalf("Decide() at score %.2f gave unexpected status %s", score, d.Status)
		}
		if r < prev {
			t.Fatalf("verdict regressed from score %.2f to %.2f: %s", prevScore, score, d.Status)
		}
		prev = r
		prevScore = score
	}
}

func TestFuse_MissingRequiredInputs(t *testing.T) {
	tests := []struct {
		name string
		ev   Evidence
	}{
		{"no forensics", Evidence{Extraction: &Extraction{}}},
		{"no extraction", Evidence{Forensics: &forensics.Report{}}},
		{"nothing", Evidence{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, d := Fuse(tt.ev)
			if d.Status != StatusRequiresReview {
				t.Errorf("Status = %s, want requires_review", d.Status)
			}
			if !d.RequiresManualReview {
				t.Error("missing input did not force manual review")
			}
			if len(d.EscalationReasons) == 0 {
				t.Error("missing input produced no escalation reasons")
			}
			if a.Confidence != 0.1 {
				t.Errorf("Confidence = %f, want floor 0.1", a.Confidence)
			}
		})
	}
}

func TestAssessmentConfidence_Floor(t *testing.T) {
	a := Assessment{OverallScore: 0.5, ForensicScore: 0.0, SignatureScore: 1.0, QRScore: 1.0}
	if got := assessmentConfidence(a); got < 0.1 {
		t.Errorf("confidence %f below floor", got)
	}
}

func TestExtractionConfidence(t *testing.T) {
	tests := []struct {
		name string
		e    Extraction
		want float64
	}{
		{"no confidences", Extraction{Fields: map[string]string{"student_name": "X"}}, 0.5},
		{
			"average over core fields",
			Extraction{
				Fields:           map[string]string{"student_name": "X", "certificate_id": "Y"},
				FieldConfidences: map[string]float64{"student_name": 0.8, "certificate_id": 0.6},
			},
			0.7,
		},
		{
			"missing confidence defaults to 0.5",
			Extraction{
				Fields:           map[string]string{"student_name": "X", "certificate_id": "Y"},
				FieldConfidences: map[string]float64{"student_name": 0.9},
			},
			0.7,
		},
		{
			"no core fields extracted",
			Extraction{
				Fields:           map[string]string{"grade": "A"},
				FieldConfidences: map[string]float64{"grade": 0.9},
			},
			0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.e.Confidence(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Confidence() = %f, want %f", got, tt.want)
			}
		})
	}
}
