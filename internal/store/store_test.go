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

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dominikschlosser/certverify/internal/attest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "records.db"), nil)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testFields() attest.CertificateFields {
	return attest.CertificateFields{
		CertificateID: "CERT-2026-001",
		StudentName:   "Jane Doe",
		CourseName:    "Computer Science",
		Institution:   "Example University",
		IssueDate:     "2026-01-15",
		Grade:         "A",
	}
}

func TestCertificate_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := CertificateRecord{
		Fields:          testFields(),
		ImageSHA256:     "abc123",
		ImagePerceptual: "p:0011223344556677",
	}
	if err := s.PutCertificate(ctx, rec); err != nil {
		t.Fatalf("PutCertificate: %v", err)
	}

	got, err := s.GetCertificate(ctx, "CERT-2026-001")
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if got.Fields != rec.Fields {
		t.Errorf("fields = %+v, want %+v", got.Fields, rec.Fields)
	}
	if got.ImageSHA256 != rec.ImageSHA256 || got.ImagePerceptual != rec.ImagePerceptual {
		t.Errorf("hashes = %q/%q, want %q/%q",
			got.ImageSHA256, got.ImagePerceptual, rec.ImageSHA256, rec.ImagePerceptual)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestGetCertificate_NormalizesID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutCertificate(ctx, CertificateRecord{Fields: testFields()}); err != nil {
		t.Fatalf("PutCertificate: %v", err)
	}

	got, err := s.GetCertificate(ctx, "  cert-2026-001 ")
	if err != nil {
		t.Fatalf("lookup with unnormalized id: %v", err)
	}
	if got.Fields.StudentName != "Jane Doe" {
		t.Errorf("StudentName = %q", got.Fields.StudentName)
	}
}

func TestGetCertificate_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetCertificate(context.Background(), "CERT-MISSING")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPutCertificate_EmptyID(t *testing.T) {
	s := openTestStore(t)

	err := s.PutCertificate(context.Background(), CertificateRecord{})
	if err == nil {
		t.Error("empty certificate id accepted")
	}
}

func TestPutCertificate_Replaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := CertificateRecord{Fields: testFields()}
	if err := s.PutCertificate(ctx, rec); err != nil {
		t.Fatalf("first put: %v", err)
	}
	rec.Fields.Grade = "B"
	if err := s.PutCertificate(ctx, rec); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, err := s.GetCertificate(ctx, rec.Fields.CertificateID)
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if got.Fields.Grade != "B" {
		t.Errorf("Grade = %q after replace, want B", got.Fields.Grade)
	}
}

func TestAttestation_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	registry, err := attest.NewRegistry()
	if err != nil {
		t.Fatalf("creating registry: %v", err)
	}
	service := attest.NewService(registry, nil)
	signed, err := service.Sign(attest.Payload{Data: testFields()}, attest.DefaultIssuerID)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if err := s.PutAttestation(ctx, "tok-123", signed); err != nil {
		t.Fatalf("PutAttestation: %v", err)
	}

	got, err := s.GetAttestation(ctx, "tok-123")
	if err != nil {
		t.Fatalf("GetAttestation: %v", err)
	}
	if got.Signature != signed.Signature {
		t.Error("signature changed through storage")
	}
	if got.Payload.Data.CertificateID != "CERT-2026-001" {
		t.Errorf("CertificateID = %q", got.Payload.Data.CertificateID)
	}

	check := service.VerifyAttestation(got, nil)
	if !check.SignatureValid {
		t.Error("stored attestation no longer verifies")
	}
}

func TestResolveAttestation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	registry, err := attest.NewRegistry()
	if err != nil {
		t.Fatalf("creating registry: %v", err)
	}
	service := attest.NewService(registry, nil)
	signed, err := service.Sign(attest.Payload{Data: testFields()}, attest.DefaultIssuerID)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	if err := s.PutAttestation(ctx, "tok-xyz", signed); err != nil {
		t.Fatalf("PutAttestation: %v", err)
	}

	if att, ok := s.ResolveAttestation("tok-xyz"); !ok || att == nil {
		t.Error("stored ref did not resolve")
	}
	if _, ok := s.ResolveAttestation("tok-unknown"); ok {
		t.Error("unknown ref resolved")
	}
}

func TestMatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.PutCertificate(ctx, CertificateRecord{Fields: testFields()}); err != nil {
		t.Fatalf("PutCertificate: %v", err)
	}

	t.Run("exact match", func(t *testing.T) {
		m, err := s.Match(ctx, testFields())
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if !m.MatchFound {
			t.Fatal("MatchFound = false for registered certificate")
		}
		if m.Confidence != 1.0 {
			t.Errorf("Confidence = %f, want 1.0", m.Confidence)
		}
		if len(m.Discrepancies) != 0 {
			t.Errorf("Discrepancies = %v, want none", m.Discrepancies)
		}
	})

	t.Run("case and whitespace tolerated", func(t *testing.T) {
		f := testFields()
		f.StudentName = "  JANE   DOE "
		m, err := s.Match(ctx, f)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if m.Confidence != 1.0 {
			t.Errorf("Confidence = %f, want 1.0", m.Confidence)
		}
	})

	t.Run("divergent field reported", func(t *testing.T) {
		f := testFields()
		f.StudentName = "John Smith"
		m, err := s.Match(ctx, f)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if !m.MatchFound {
			t.Fatal("MatchFound = false")
		}
		if len(m.Discrepancies) != 1 {
			t.Fatalf("Discrepancies = %v, want exactly one", m.Discrepancies)
		}
		if m.Confidence >= 1.0 {
			t.Errorf("Confidence = %f, want < 1.0", m.Confidence)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		m, err := s.Match(ctx, attest.CertificateFields{StudentName: "Jane Doe"})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if m.MatchFound {
			t.Error("MatchFound = true without a certificate id")
		}
	})

	t.Run("unregistered id", func(t *testing.T) {
		f := testFields()
		f.CertificateID = "CERT-2026-999"
		m, err := s.Match(ctx, f)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if m.MatchFound {
			t.Error("MatchFound = true for unknown certificate")
		}
	})
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Jane Doe", "Jane Doe", 1.0},
		{"case insensitive", "JANE DOE", "jane doe", 1.0},
		{"whitespace collapsed", " Jane   Doe ", "Jane Doe", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "Jane", "", 0.0},
		{"single edit", "abcd", "abce", 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := similarity(tt.a, tt.b); got != tt.want {
				t.Errorf("similarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"same", "same", 0},
		{"", "abc", 3},
	}

	for _, tt := range tests {
		if got := levenshtein([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
