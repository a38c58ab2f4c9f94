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

// Package pipeline orchestrates a full verification run: forensic analysis,
// QR attestation checks, database matching, and evidence fusion.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/forensics"
	"github.com/dominikschlosser/certverify/internal/fusion"
	"github.com/dominikschlosser/certverify/internal/qr"
	"github.com/dominikschlosser/certverify/internal/store"

	"github.com/google/uuid"
)

// Result is the complete outcome of one verification attempt.
type Result struct {
	VerificationID string                 `json:"verification_id"`
	Forensics      *forensics.Report      `json:"forensics,omitempty"`
	QRCheck        *attest.IntegrityCheck `json:"qr_check,omitempty"`
	Database       *fusion.DatabaseMatch  `json:"database_match,omitempty"`
	Assessment     fusion.Assessment      `json:"risk_assessment"`
	Decision       fusion.Decision        `json:"decision"`
	ElapsedSeconds float64                `json:"elapsed_seconds"`
}

// Pipeline wires the verification subsystems together. Store may be nil
// when no record database is configured.
type Pipeline struct {
	engine  *forensics.Engine
	service *attest.Service
	records *store.Store
	logger  *zap.Logger
}

func New(engine *forensics.Engine, service *attest.Service, records *store.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = forensics.NewEngine(logger)
	}
	return &Pipeline{engine: engine, service: service, records: records, logger: logger}
}

// Verify runs the full pipeline over an encoded certificate image plus
// whatever extraction and seal evidence the caller already has. It always
// produces a decision; internal failures degrade to a manual-review verdict
// rather than an error.
func (p *Pipeline) Verify(ctx context.Context, image []byte, extraction *fusion.Extraction, seals *fusion.SealSignature) *Result {
	start := time.Now()
	result := &Result{VerificationID: uuid.New().String()}

	p.logger.Info("verification started",
		zap.String("verification_id", result.VerificationID),
		zap.Int("image_bytes", len(image)))

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("verification panicked",
				zap.String("verification_id", result.VerificationID),
				zap.Any("panic", r))
			result.Assessment = fusion.Assessment{
				OverallScore: 0.5,
				Confidence:   0.1,
				RiskLevel:    fusion.RiskHigh,
				Weights:      fusion.Weights(),
			}
			result.Decision = fusion.Decision{
				Status:               fusion.StatusRequiresReview,
				RequiresManualReview: true,
				EscalationReasons:    []string{"assessment error"},
				Rationale:            "Internal assessment error, manual review required",
			}
			result.ElapsedSeconds = time.Since(start).Seconds()
		}
	}()

	fields := extractedFields(extraction)
	referenceHash := p.lookupReferenceHash(ctx, fields["certificate_id"])

	var (
		report  forensics.Report
		qrCheck *attest.IntegrityCheck
		dbMatch *fusion.DatabaseMatch
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report = p.engine.Analyze(gctx, image, referenceHash)
		return nil
	})
	g.Go(func() error {
		qrCheck = p.scanAndVerify(image, fields)
		return nil
	})
	g.Go(func() error {
		dbMatch = p.matchRecords(gctx, fields)
		return nil
	})
	// Subsystem failures are folded into the evidence, never propagated.
	_ = g.Wait()

	result.Forensics = &report
	result.QRCheck = qrCheck
	result.Database = dbMatch

	ev := fusion.Evidence{
		Extraction: extraction,
		Forensics:  &report,
		Seals:      seals,
		QR:         qrCheck,
		Database:   dbMatch,
	}
	result.Assessment, result.Decision = fusion.Fuse(ev)
	result.ElapsedSeconds = time.Since(start).Seconds()

	p.logger.Info("verification complete",
		zap.String("verification_id", result.VerificationID),
		zap.String("status", string(result.Decision.Status)),
		zap.Float64("overall_score", result.Assessment.OverallScore),
		zap.Float64("elapsed_s", result.ElapsedSeconds))

	return result
}

// scanAndVerify looks for a QR code in the image and validates whatever it
// carries. A missing code returns nil, which fusion treats as neutral.
func (p *Pipeline) scanAndVerify(image []byte, fields map[string]string) *attest.IntegrityCheck {
	content, err := qr.ScanBytes(image)
	if err != nil {
		p.logger.Debug("no QR code found", zap.Error(err))
		return nil
	}
	if p.service == nil {
		check := attest.IntegrityCheck{
			QRDetected:   true,
			QRDecoded:    true,
			ErrorMessage: "no attestation service configured",
		}
		return &check
	}
	check := p.service.VerifyScan(content, fields)
	return &check
}

func (p *Pipeline) matchRecords(ctx context.Context, fields map[string]string) *fusion.DatabaseMatch {
	if p.records == nil {
		return nil
	}
	match, err := p.records.Match(ctx, certificateFields(fields))
	if err != nil {
		p.logger.Warn("database match failed", zap.Error(err))
		return nil
	}
	return match
}

func (p *Pipeline) lookupReferenceHash(ctx context.Context, certificateID string) string {
	if p.records == nil || certificateID == "" {
		return ""
	}
	rec, err := p.records.GetCertificate(ctx, certificateID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("reference hash lookup failed", zap.Error(err))
		}
		return ""
	}
	return rec.ImageSHA256
}

func extractedFields(extraction *fusion.Extraction) map[string]string {
	if extraction == nil {
		return nil
	}
	return extraction.Fields
}

func certificateFields(fields map[string]string) attest.CertificateFields {
	return attest.CertificateFields{
		CertificateID: fields["certificate_id"],
		StudentName:   fields["student_name"],
		RollNo:        fields["roll_no"],
		CourseName:    fields["course_name"],
		Institution:   fields["institution"],
		Department:    fields["department"],
		IssueDate:     fields["issue_date"],
		Year:          fields["year"],
		Grade:         fields["grade"],
		CGPA:          fields["cgpa"],
		Status:        fields["status"],
	}
}
