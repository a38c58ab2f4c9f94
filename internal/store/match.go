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
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/fusion"
)

// Fields below this similarity count as discrepancies.
const discrepancyThreshold = 0.8

// Match looks up the certificate id in the store and scores how well the
// presented fields agree with the registered record. A missing id or row
// yields MatchFound false, never an error.
func (s *Store) Match(ctx context.Context, fields attest.CertificateFields) (*fusion.DatabaseMatch, error) {
	id := normalizeID(fields.CertificateID)
	if id == "" {
		return &fusion.DatabaseMatch{}, nil
	}

	rec, err := s.GetCertificate(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("no database record", zap.String("certificate_id", id))
		return &fusion.DatabaseMatch{}, nil
	}
	if err != nil {
		return nil, err
	}

	type pair struct {
		name      string
		presented string
		stored    string
	}
	pairs := []pair{
		{"student_name", fields.StudentName, rec.Fields.StudentName},
		{"course_name", fields.CourseName, rec.Fields.CourseName},
		{"institution", fields.Institution, rec.Fields.Institution},
		{"issue_date", fields.IssueDate, rec.Fields.IssueDate},
		{"grade", fields.Grade, rec.Fields.Grade},
	}

	match := &fusion.DatabaseMatch{MatchFound: true}
	var total float64
	var n int
	for _, p := range pairs {
		if p.stored == "" && p.presented == "" {
			continue
		}
		sim := similarity(p.presented, p.stored)
		total += sim
		n++
		if sim < discrepancyThreshold {
			match.Discrepancies = append(match.Discrepancies,
				fmt.Sprintf("%s: %q does not match registered %q", p.name, p.presented, p.stored))
		}
	}
	if n == 0 {
		match.Confidence = 1.0
	} else {
		match.Confidence = total / float64(n)
	}

	return match, nil
}

// similarity is a normalized Levenshtein similarity in [0,1], case and
// whitespace insensitive.
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.Join(strings.Fields(a), " "))
	b = strings.ToLower(strings.Join(strings.Fields(b), " "))
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	dist := levenshtein([]rune(a), []rune(b))
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	return 1.0 - float64(dist)/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
