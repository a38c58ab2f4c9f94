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

// Package store persists issued certificate records and signed attestations
// in SQLite, and answers database-match queries during verification.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/dominikschlosser/certverify/internal/attest"
)

var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS certificates (
	certificate_id TEXT PRIMARY KEY,
	student_name   TEXT NOT NULL,
	roll_no        TEXT,
	course_name    TEXT,
	institution    TEXT,
	department     TEXT,
	issue_date     TEXT,
	year           TEXT,
	grade          TEXT,
	cgpa           TEXT,
	status         TEXT,
	image_sha256   TEXT,
	image_phash    TEXT,
	created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attestations (
	id             TEXT PRIMARY KEY,
	ref            TEXT UNIQUE NOT NULL,
	certificate_id TEXT NOT NULL,
	envelope       BLOB NOT NULL,
	created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attestations_cert ON attestations(certificate_id);
`

// CertificateRecord is one issued certificate as registered by the
// institution, including the image hashes captured at issuance time.
type CertificateRecord struct {
	Fields          attest.CertificateFields `json:"fields"`
	ImageSHA256     string                   `json:"image_sha256,omitempty"`
	ImagePerceptual string                   `json:"image_phash,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

// Store is a SQLite-backed record store. Attestation envelopes are kept as
// CBOR blobs so they round-trip byte-exact.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if necessary) the store at path. A nil logger
// disables logging.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("record store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutCertificate registers or replaces a certificate record, keyed by
// certificate id.
func (s *Store) PutCertificate(ctx context.Context, rec CertificateRecord) error {
	id := normalizeID(rec.Fields.CertificateID)
	if id == "" {
		return errors.New("certificate id is empty")
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO certificates
		  (certificate_id, student_name, roll_no, course_name, institution, department,
		   issue_date, year, grade, cgpa, status, image_sha256, image_phash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, rec.Fields.StudentName, rec.Fields.RollNo, rec.Fields.CourseName,
		rec.Fields.Institution, rec.Fields.Department, rec.Fields.IssueDate,
		rec.Fields.Year, rec.Fields.Grade, rec.Fields.CGPA, rec.Fields.Status,
		rec.ImageSHA256, rec.ImagePerceptual, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("inserting certificate: %w", err)
	}

	s.logger.Debug("certificate registered", zap.String("certificate_id", id))
	return nil
}

// GetCertificate fetches a record by certificate id, or ErrNotFound.
func (s *Store) GetCertificate(ctx context.Context, certificateID string) (*CertificateRecord, error) {
	var rec CertificateRecord
	var createdAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT certificate_id, student_name, roll_no, course_name, institution, department,
		       issue_date, year, grade, cgpa, status, image_sha256, image_phash, created_at
		FROM certificates WHERE certificate_id = ?
	`, normalizeID(certificateID)).Scan(
		&rec.Fields.CertificateID, &rec.Fields.StudentName, &rec.Fields.RollNo,
		&rec.Fields.CourseName, &rec.Fields.Institution, &rec.Fields.Department,
		&rec.Fields.IssueDate, &rec.Fields.Year, &rec.Fields.Grade,
		&rec.Fields.CGPA, &rec.Fields.Status,
		&rec.ImageSHA256, &rec.ImagePerceptual, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying certificate: %w", err)
	}

	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}

// PutAttestation stores a signed attestation under its reference, the token
// a verification URL resolves to.
func (s *Store) PutAttestation(ctx context.Context, ref string, att *attest.SignedAttestation) error {
	if ref == "" {
		return errors.New("attestation ref is empty")
	}
	if att == nil {
		return errors.New("attestation is nil")
	}

	envelope, err := cbor.Marshal(att)
	if err != nil {
		return fmt.Errorf("encoding attestation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO attestations (id, ref, certificate_id, envelope, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.New().String(), ref, normalizeID(att.Payload.Data.CertificateID), envelope, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("inserting attestation: %w", err)
	}

	s.logger.Debug("attestation stored", zap.String("ref", ref))
	return nil
}

// GetAttestation fetches a stored attestation by reference, or ErrNotFound.
func (s *Store) GetAttestation(ctx context.Context, ref string) (*attest.SignedAttestation, error) {
	var envelope []byte
	err := s.db.QueryRowContext(ctx, `SELECT envelope FROM attestations WHERE ref = ?`, ref).Scan(&envelope)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying attestation: %w", err)
	}

	var att attest.SignedAttestation
	if err := cbor.Unmarshal(envelope, &att); err != nil {
		return nil, fmt.Errorf("decoding attestation: %w", err)
	}
	return &att, nil
}

// ResolveAttestation implements attest.Resolver, so verification of
// link-mode QR codes can look up the stored envelope.
func (s *Store) ResolveAttestation(ref string) (*attest.SignedAttestation, bool) {
	att, err := s.GetAttestation(context.Background(), ref)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("attestation lookup failed", zap.String("ref", ref), zap.Error(err))
		}
		return nil, false
	}
	return att, true
}

var _ attest.Resolver = (*Store)(nil)

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
