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

import "fmt"

// VerificationStatus is the final outcome of a verification attempt.
type VerificationStatus string

const (
	StatusVerified         VerificationStatus = "verified"
	StatusRequiresReview   VerificationStatus = "requires_review"
	StatusFailed           VerificationStatus = "failed"
	StatusTampered         VerificationStatus = "tampered"
	StatusSignatureInvalid VerificationStatus = "signature_invalid"
)

// Decision thresholds on the fused overall score.
const (
	autoApproveThreshold = 0.85
	autoRejectThreshold  = 0.30
	minDecisionConf      = 0.8
	hardRejectTamperProb = 0.8
	hardRejectTypeCount  = 3
)

// Decision is the final verdict with the reasoning that produced it.
type Decision struct {
	Status               VerificationStatus `json:"status"`
	RequiresManualReview bool               `json:"requires_manual_review"`
	EscalationReasons    []string           `json:"escalation_reasons,omitempty"`
	Rationale            string             `json:"decision_rationale"`
}

// Fuse runs the full fusion pipeline: assess the evidence, then decide.
// Forensics and Extraction are required; if either is missing the result is
// a low-confidence escalation rather than a fabricated score.
func Fuse(ev Evidence) (Assessment, Decision) {
	var missing []string
	if ev.Forensics == nil {
		missing = append(missing, "forensic analysis")
	}
	if ev.Extraction == nil {
		missing = append(missing, "field extraction")
	}
	if len(missing) > 0 {
		a := Assessment{
			OverallScore: 0.5,
			Confidence:   0.1,
			RiskLevel:    RiskHigh,
			Weights:      Weights(),
		}
		d := Decision{
			Status:               StatusRequiresReview,
			RequiresManualReview: true,
			Rationale:            "Assessment incomplete, manual review required",
		}
		for _, m := range missing {
			a.RiskFactors = append(a.RiskFactors, "Missing required input: "+m)
			d.EscalationReasons = append(d.EscalationReasons, "Missing required input: "+m)
		}
		return a, d
	}

	a := Assess(ev)
	return a, Decide(a, ev)
}

// Decide applies the decision rules in strict order. Earlier rules are
// hard verdicts; later rules never override them.
func Decide(a Assessment, ev Evidence) Decision {
	// Rule 1: hard reject on strong tamper evidence, regardless of how
	// well the other channels score.
	if f := ev.Forensics; f != nil {
		hashMismatch := f.HashMatch != nil && !*f.HashMatch
		if f.TamperProbability > hardRejectTamperProb || hashMismatch || len(f.TamperTypes) >= hardRejectTypeCount {
			return Decision{
				Status:               StatusTampered,
				RequiresManualReview: true,
				Rationale:            "Strong evidence of image tampering",
			}
		}
	}

	// Rule 2: cryptographic evidence either failed or does not exist.
	if ev.QR != nil && ev.QR.QRDecoded && !ev.QR.SignatureValid {
		return Decision{
			Status:               StatusSignatureInvalid,
			RequiresManualReview: true,
			Rationale:            "Attestation decoded but signature verification failed",
		}
	}
	noSeals := ev.Seals == nil || (ev.Seals.SealsDetected == 0 && ev.Seals.SignaturesDetected == 0)
	if noSeals && ev.QR == nil {
		return Decision{
			Status:               StatusSignatureInvalid,
			RequiresManualReview: true,
			Rationale:            "No seals, signatures, or scannable attestation present",
		}
	}

	// Rule 3: auto-approve only with a clean risk factor slate.
	if a.OverallScore >= autoApproveThreshold && a.Confidence >= minDecisionConf && len(a.RiskFactors) == 0 {
		return Decision{
			Status:    StatusVerified,
			Rationale: fmt.Sprintf("High authenticity score (%.2f) with no risk factors", a.OverallScore),
		}
	}

	// Rule 4: score and risk factors conflict.
	if a.OverallScore >= autoApproveThreshold && len(a.RiskFactors) > 0 {
		return Decision{
			Status:               StatusRequiresReview,
			RequiresManualReview: true,
			EscalationReasons:    append([]string(nil), a.RiskFactors...),
			Rationale:            "High score but outstanding risk factors require review",
		}
	}

	// Rule 5: auto-reject.
	if a.OverallScore <= autoRejectThreshold {
		return Decision{
			Status:    StatusFailed,
			Rationale: fmt.Sprintf("Authenticity score too low (%.2f)", a.OverallScore),
		}
	}

	// Rule 6: everything in between goes to a human.
	d := Decision{
		Status:               StatusRequiresReview,
		RequiresManualReview: true,
		Rationale:            "Inconclusive evidence, manual review required",
	}
	if a.Confidence < 0.6 {
		d.EscalationReasons = append(d.EscalationReasons, "Low confidence in assessment")
	}
	if ev.Database == nil || !ev.Database.MatchFound {
		d.EscalationReasons = append(d.EscalationReasons, "No database match")
	}
	if a.RiskLevel == RiskHigh || a.RiskLevel == RiskCritical {
		d.EscalationReasons = append(d.EscalationReasons, "High risk level detected")
	}
	return d
}
