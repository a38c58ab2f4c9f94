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

// Package fusion combines forensic, cryptographic, extraction, and
// database-match evidence into a risk assessment and a conservative,
// auditable verification decision. Fusing is a pure function of its inputs.
package fusion

import (
	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/forensics"
)

// Extraction is the field-extraction result supplied by an external
// document-understanding collaborator.
type Extraction struct {
	Fields           map[string]string  `json:"fields"`
	FieldConfidences map[string]float64 `json:"field_confidences"`
}

// coreFields are the fields that drive extraction confidence.
var coreFields = []string{"student_name", "certificate_id", "institution", "course_name"}

// Confidence averages the per-field confidence over the core fields that
// were extracted. With no confidence data at all the result is a neutral
// 0.5.
func (e *Extraction) Confidence() float64 {
	if len(e.FieldConfidences) == 0 {
		return 0.5
	}

	var total float64
	var n int
	for _, f := range coreFields {
		if e.Fields[f] == "" {
			continue
		}
		conf, ok := e.FieldConfidences[f]
		if !ok {
			conf = 0.5
		}
		total += conf
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// SealSignature is the seal/signature detection evidence from an external
// object-detection collaborator. Scores are arbitrary floats in [0,1]; no
// particular distribution is assumed.
type SealSignature struct {
	SealsDetected      int     `json:"seals_detected"`
	SignaturesDetected int     `json:"signatures_detected"`
	SealScore          float64 `json:"seal_score"`
	SignatureScore     float64 `json:"signature_score"`
}

// Score averages the seal and signature authenticity sub-scores.
func (s *SealSignature) Score() float64 {
	return (s.SealScore + s.SignatureScore) / 2.0
}

// DatabaseMatch is the institutional-record lookup result.
type DatabaseMatch struct {
	MatchFound    bool     `json:"match_found"`
	Confidence    float64  `json:"confidence"`
	Discrepancies []string `json:"discrepancies,omitempty"`
}

// Evidence bundles everything the fusion engine consumes. Forensics and
// Extraction are required; the rest may be nil when the corresponding
// collaborator produced nothing (QR nil means no scannable code was present
// at all).
type Evidence struct {
	Extraction *Extraction
	Forensics  *forensics.Report
	Seals      *SealSignature
	QR         *attest.IntegrityCheck
	Database   *DatabaseMatch
}
