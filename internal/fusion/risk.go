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
	"fmt"
	"math"
	"strings"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/forensics"
)

// RiskLevel buckets the overall risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Evidence channel weights. They sum to 1.0.
const (
	weightExtraction = 0.25
	weightDatabase   = 0.30
	weightForensic   = 0.25
	weightSignature  = 0.15
	weightQR         = 0.05
)

// QR integrity sub-score components.
const (
	qrScoreAbsent      = 0.5
	qrScoreUndecodable = 0.2
	qrScoreBase        = 0.5
	qrBonusSignature   = 0.3
	qrBonusIssuer      = 0.2
	qrBonusCertID      = 0.1
	qrBonusIssueDate   = 0.1
)

// Risk level thresholds on the overall score.
const (
	riskLowFloor    = 0.8
	riskMediumFloor = 0.6
	riskHighFloor   = 0.4
)

// Assessment is the fused risk picture for one verification attempt.
type Assessment struct {
	ExtractionScore float64 `json:"extraction_score"`
	DatabaseScore   float64 `json:"database_score"`
	ForensicScore   float64 `json:"forensic_score"`
	SignatureScore  float64 `json:"signature_score"`
	QRScore         float64 `json:"qr_score"`

	OverallScore float64   `json:"overall_score"`
	Confidence   float64   `json:"confidence"`
	RiskLevel    RiskLevel `json:"risk_level"`

	RiskFactors            []string `json:"risk_factors"`
	AuthenticityIndicators []string `json:"authenticity_indicators"`

	Weights map[string]float64 `json:"fusion_weights"`
}

// Weights reports the evidence channel weights keyed by channel name.
func Weights() map[string]float64 {
	return map[string]float64{
		"extraction": weightExtraction,
		"database":   weightDatabase,
		"forensic":   weightForensic,
		"signature":  weightSignature,
		"qr":         weightQR,
	}
}

// Assess fuses the evidence channels into a weighted overall score, a
// confidence in that score, and a risk level. Missing optional channels
// contribute their neutral values; required channels must be checked by the
// caller (Fuse does).
func Assess(ev Evidence) Assessment {
	a := Assessment{Weights: Weights()}

	if ev.Extraction != nil {
		a.ExtractionScore = ev.Extraction.Confidence()
	}
	a.DatabaseScore = databaseScore(ev.Database)
	if ev.Forensics != nil {
		a.ForensicScore = ev.Forensics.ForensicScore()
	}
	if ev.Seals != nil {
		a.SignatureScore = ev.Seals.Score()
	}
	a.QRScore = qrScore(ev.QR)

	a.OverallScore = weightExtraction*a.ExtractionScore +
		weightDatabase*a.DatabaseScore +
		weightForensic*a.ForensicScore +
		weightSignature*a.SignatureScore +
		weightQR*a.QRScore

	a.Confidence = assessmentConfidence(a)
	a.RiskLevel = riskLevel(a.OverallScore)
	a.RiskFactors = collectRiskFactors(ev)
	a.AuthenticityIndicators = collectAuthenticityIndicators(ev)

	return a
}

func databaseScore(db *DatabaseMatch) float64 {
	if db == nil || !db.MatchFound {
		return 0
	}
	score := db.Confidence
	// Each discrepancy erodes trust in the matched record.
	score -= 0.1 * float64(len(db.Discrepancies))
	if score < 0 {
		return 0
	}
	return score
}

func qrScore(qr *attest.IntegrityCheck) float64 {
	if qr == nil {
		return qrScoreAbsent
	}
	if !qr.QRDecoded {
		return qrScoreUndecodable
	}
	score := qrScoreBase
	if qr.SignatureValid {
		score += qrBonusSignature
	}
	if qr.IssuerVerified {
		score += qrBonusIssuer
	}
	if qr.CertificateIDMatch {
		score += qrBonusCertID
	}
	if qr.IssueDateMatch {
		score += qrBonusIssueDate
	}
	if score > 1 {
		score = 1
	}
	return score
}

// assessmentConfidence degrades a perfect 1.0 confidence when evidence
// channels disagree with the fused score.
func assessmentConfidence(a Assessment) float64 {
	conf := 1.0
	if math.Abs(a.ForensicScore-a.OverallScore) > 0.3 {
		conf -= 0.2
	}
	if math.Abs(a.SignatureScore-a.OverallScore) > 0.3 {
		conf -= 0.2
	}
	if a.QRScore > qrScoreAbsent && math.Abs(a.QRScore-a.OverallScore) > 0.4 {
		conf -= 0.1
	}
	if conf < 0.1 {
		conf = 0.1
	}
	return conf
}

func riskLevel(overall float64) RiskLevel {
	switch {
	case overall >= riskLowFloor:
		return RiskLow
	case overall >= riskMediumFloor:
		return RiskMedium
	case overall >= riskHighFloor:
		return RiskHigh
	default:
		return RiskCritical
	}
}

func collectRiskFactors(ev Evidence) []string {
	var factors []string

	if ev.Extraction != nil && ev.Extraction.Confidence() < 0.7 {
		factors = append(factors, "Low field extraction confidence")
	}
	if ev.Forensics != nil {
		if ev.Forensics.TamperProbability > 0.5 {
			factors = append(factors, "High tampering probability detected")
		}
		if len(ev.Forensics.TamperTypes) > 0 {
			factors = append(factors, "Tampering indicators: "+strings.Join(tamperTypeNames(ev.Forensics.TamperTypes), ", "))
		}
		if ev.Forensics.HashMatch != nil && !*ev.Forensics.HashMatch {
			factors = append(factors, "Image hash mismatch with registered original")
		}
	}
	if ev.Seals != nil {
		if ev.Seals.SealsDetected == 0 {
			factors = append(factors, "No institutional seals detected")
		}
		if ev.Seals.SignaturesDetected == 0 {
			factors = append(factors, "No signatures detected")
		}
	}
	if ev.QR != nil && ev.QR.QRDecoded && !ev.QR.SignatureValid {
		factors = append(factors, "QR attestation signature invalid")
	}
	if ev.Database == nil || !ev.Database.MatchFound {
		factors = append(factors, "No database match found")
	} else if len(ev.Database.Discrepancies) > 0 {
		factors = append(factors, fmt.Sprintf("Database discrepancies in %d field(s)", len(ev.Database.Discrepancies)))
	}

	return factors
}

func collectAuthenticityIndicators(ev Evidence) []string {
	var indicators []string

	if ev.Extraction != nil && ev.Extraction.Confidence() >= 0.8 {
		indicators = append(indicators, "High confidence field extraction")
	}
	if ev.Forensics != nil && ev.Forensics.TamperProbability <= 0.2 {
		indicators = append(indicators, "No tampering indicators found")
	}
	if ev.Forensics != nil && ev.Forensics.HashMatch != nil && *ev.Forensics.HashMatch {
		indicators = append(indicators, "Image hash matches registered original")
	}
	if ev.Seals != nil && ev.Seals.SealsDetected > 0 && ev.Seals.SealScore >= 0.7 {
		indicators = append(indicators, "Authentic institutional seal detected")
	}
	if ev.QR != nil && ev.QR.SignatureValid {
		indicators = append(indicators, "Valid cryptographic attestation in QR code")
	}
	if ev.Database != nil && ev.Database.MatchFound && len(ev.Database.Discrepancies) == 0 {
		indicators = append(indicators, "Database record match found")
	}

	return indicators
}

func tamperTypeNames(types []forensics.TamperType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = strings.ReplaceAll(string(t), "_", " ")
	}
	return out
}
