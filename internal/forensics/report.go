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

// Package forensics detects image manipulation in certificate scans. Six
// independent detectors each return a score in [0,1]; a fixed weighted sum
// gives the overall tamper probability. A detector failing or timing out
// contributes its neutral default instead of aborting the report.
package forensics

import (
	"time"
)

// TamperType labels a detected class of manipulation.
type TamperType string

const (
	TamperCopyMove          TamperType = "copy_move"
	TamperELAAnomaly        TamperType = "ela_anomaly"
	TamperDoubleCompression TamperType = "double_compression"
	TamperNoiseInconsistent TamperType = "noise_inconsistency"
	TamperResampling        TamperType = "resampling"
	TamperHashMismatch      TamperType = "hash_mismatch"
)

// Detector weights for the overall tamper probability. They sum to 1.0.
const (
	weightCopyMove    = 0.25
	weightELA         = 0.20
	weightCompression = 0.15
	weightNoise       = 0.20
	weightResampling  = 0.10
	weightJPEG        = 0.10
)

// Per-detector thresholds above which a tamper type is flagged.
const (
	thresholdCopyMove    = 0.6
	thresholdELA         = 0.7
	thresholdCompression = 0.8
	thresholdNoise       = 0.7
	thresholdResampling  = 0.6
)

// BBox is a suspicious image region in pixel coordinates, [X0,Y0] inclusive
// top-left to [X1,Y1] exclusive bottom-right.
type BBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Report is the tamper-detection result for one image. Immutable once
// produced.
type Report struct {
	CopyMoveScore     float64 `json:"copy_move_score"`
	ELAScore          float64 `json:"ela_score"`
	CompressionScore  float64 `json:"double_compression_score"`
	NoiseScore        float64 `json:"noise_analysis_score"`
	ResamplingScore   float64 `json:"resampling_score"`
	JPEGArtifactScore float64 `json:"jpeg_artifact_score"`

	TamperProbability float64      `json:"tamper_probability"`
	TamperTypes       []TamperType `json:"tamper_types"`
	SuspiciousRegions []BBox       `json:"suspicious_regions"`

	SHA256         string `json:"sha256,omitempty"`
	PerceptualHash string `json:"perceptual_hash,omitempty"`
	HashMatch      *bool  `json:"hash_match,omitempty"`

	AnalysisTime   time.Duration `json:"-"`
	DetectorErrors []string      `json:"detector_errors,omitempty"`
}

// ForensicScore is the fused-engine view of the report: 1 − tamper
// probability.
func (r *Report) ForensicScore() float64 {
	return 1.0 - r.TamperProbability
}

// tamperProbability combines detector scores with the fixed weights,
// clamped to [0,1].
func tamperProbability(copyMove, ela, compression, noise, resampling, jpeg float64) float64 {
	p := copyMove*weightCopyMove +
		ela*weightELA +
		compression*weightCompression +
		noise*weightNoise +
		resampling*weightResampling +
		jpeg*weightJPEG
	return clamp01(p)
}

// classifyTamperTypes flags detectors whose score exceeds its threshold.
// A hash mismatch is appended by the engine unconditionally, independent of
// any score.
func classifyTamperTypes(copyMove, ela, compression, noise, resampling float64) []TamperType {
	var types []TamperType
	if copyMove > thresholdCopyMove {
		types = append(types, TamperCopyMove)
	}
	if ela > thresholdELA {
		types = append(types, TamperELAAnomaly)
	}
	if compression > thresholdCompression {
		types = append(types, TamperDoubleCompression)
	}
	if noise > thresholdNoise {
		types = append(types, TamperNoiseInconsistent)
	}
	if resampling > thresholdResampling {
		types = append(types, TamperResampling)
	}
	return types
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
