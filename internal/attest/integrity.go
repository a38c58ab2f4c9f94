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

package attest

import (
	"crypto/sha256"
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"github.com/corona10/goimagehash"

	"github.com/dominikschlosser/certverify/internal/format"
)

// perceptualDriftTolerance is the pHash Hamming distance up to which two
// images count as near duplicates.
const perceptualDriftTolerance = 10

// ImageHashes are the integrity fingerprints computed at issuance and
// recomputed at verification.
type ImageHashes struct {
	SHA256     string `json:"sha256"`
	Perceptual string `json:"perceptual_hash"`
}

// HashComparison reports how recomputed hashes relate to the reference
// stored at issuance. A cryptographic mismatch is a hard integrity failure;
// perceptual drift alone is advisory and never fails verification by itself.
type HashComparison struct {
	SHAMatch           bool `json:"sha_match"`
	PerceptualDistance int  `json:"perceptual_distance"`
	NearDuplicate      bool `json:"near_duplicate"`
}

// ComputeImageHashes returns the SHA-256 of the encoded image bytes and the
// 64-bit perceptual hash of the decoded image. The SHA-256 is always
// populated, even when the perceptual hash cannot be computed, so callers
// can still compare against the issuance reference on partial failure.
func ComputeImageHashes(encoded []byte, img image.Image) (ImageHashes, error) {
	sum := sha256.Sum256(encoded)
	hashes := ImageHashes{SHA256: format.EncodeHex(sum[:])}

	ph, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return hashes, fmt.Errorf("computing perceptual hash: %w", err)
	}

	hashes.Perceptual = fmt.Sprintf("%016x", ph.GetHash())
	return hashes, nil
}

// CompareHashes compares recomputed hashes against the issuance reference.
func CompareHashes(current, reference ImageHashes) HashComparison {
	cmp := HashComparison{
		SHAMatch: current.SHA256 != "" && current.SHA256 == reference.SHA256,
	}

	dist, err := perceptualDistance(current.Perceptual, reference.Perceptual)
	if err != nil {
		cmp.PerceptualDistance = 64
		return cmp
	}
	cmp.PerceptualDistance = dist
	cmp.NearDuplicate = dist <= perceptualDriftTolerance
	return cmp
}

func perceptualDistance(a, b string) (int, error) {
	ah, err := strconv.ParseUint(a, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing perceptual hash %q: %w", a, err)
	}
	bh, err := strconv.ParseUint(b, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing perceptual hash %q: %w", b, err)
	}
	return bits.OnesCount64(ah ^ bh), nil
}
