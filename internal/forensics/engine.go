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

package forensics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dominikschlosser/certverify/internal/attest"
	"github.com/dominikschlosser/certverify/internal/imaging"
)

// DefaultDetectorTimeout bounds each individual detector. A timed-out
// detector contributes its neutral default, same as a failed one.
const DefaultDetectorTimeout = 20 * time.Second

// Engine runs the forensic detector suite over decoded images.
type Engine struct {
	DetectorTimeout time.Duration

	logger *zap.Logger
}

// NewEngine creates a forensic engine. logger may be nil.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		DetectorTimeout: DefaultDetectorTimeout,
		logger:          logger,
	}
}

type detector struct {
	name string
	fn   func(*imaging.Raster) (float64, error)
}

// Analyze runs all detectors concurrently over the encoded image and
// produces a Report. If referenceHash is non-empty and differs from the
// recomputed SHA-256, a hash-mismatch tamper type is reported regardless of
// detector scores. Analysis never returns an error to callers: an
// undecodable image or a wholesale failure yields the uncertain report
// (tamper probability 0.5, no evidence).
func (e *Engine) Analyze(ctx context.Context, encoded []byte, referenceHash string) Report {
	start := time.Now()

	raster, err := imaging.Decode(encoded)
	if err != nil {
		e.logger.Error("forensic analysis failed", zap.Error(err))
		return Report{
			TamperProbability: 0.5,
			AnalysisTime:      time.Since(start),
			DetectorErrors:    []string{err.Error()},
		}
	}

	detectors := []detector{
		{"copy_move", detectCopyMove},
		{"ela", detectELA},
		{"double_compression", detectDoubleCompression},
		{"noise", detectNoiseInconsistency},
		{"resampling", detectResampling},
		{"jpeg_artifacts", detectJPEGArtifacts},
	}

	scores := make([]float64, len(detectors))
	errs := make([]string, len(detectors))
	var report Report

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range detectors {
		g.Go(func() error {
			score, derr := e.runDetector(gctx, d, raster)
			if derr != nil {
				e.logger.Warn("detector degraded to neutral default",
					zap.String("detector", d.name), zap.Error(derr))
				errs[i] = fmt.Sprintf("%s: %v", d.name, derr)
				return nil
			}
			scores[i] = clamp01(score)
			return nil
		})
	}

	var regions []BBox
	g.Go(func() error {
		var rerr error
		regions, rerr = findSuspiciousRegions(raster)
		if rerr != nil {
			e.logger.Warn("region detection failed", zap.Error(rerr))
		}
		return nil
	})

	var hashes attest.ImageHashes
	g.Go(func() error {
		var herr error
		hashes, herr = attest.ComputeImageHashes(encoded, raster.Img)
		if herr != nil {
			e.logger.Warn("hash computation failed", zap.Error(herr))
		}
		return nil
	})

	// Detector errors never abort the group; Wait only joins the barrier.
	_ = g.Wait()

	for _, msg := range errs {
		if msg != "" {
			report.DetectorErrors = append(report.DetectorErrors, msg)
		}
	}

	report.CopyMoveScore = scores[0]
	report.ELAScore = scores[1]
	report.CompressionScore = scores[2]
	report.NoiseScore = scores[3]
	report.ResamplingScore = scores[4]
	report.JPEGArtifactScore = scores[5]
	report.SuspiciousRegions = regions
	report.SHA256 = hashes.SHA256
	report.PerceptualHash = hashes.Perceptual

	report.TamperTypes = classifyTamperTypes(
		report.CopyMoveScore, report.ELAScore, report.CompressionScore,
		report.NoiseScore, report.ResamplingScore)

	if referenceHash != "" && report.SHA256 != "" {
		match := referenceHash == report.SHA256
		report.HashMatch = &match
		if !match {
			report.TamperTypes = append(report.TamperTypes, TamperHashMismatch)
		}
	}

	report.TamperProbability = tamperProbability(
		report.CopyMoveScore, report.ELAScore, report.CompressionScore,
		report.NoiseScore, report.ResamplingScore, report.JPEGArtifactScore)

	report.AnalysisTime = time.Since(start)
	e.logger.Info("forensic analysis completed",
		zap.Duration("elapsed", report.AnalysisTime),
		zap.Float64("tamper_probability", report.TamperProbability))

	return report
}

// runDetector executes one detector bounded by the engine's timeout.
func (e *Engine) runDetector(ctx context.Context, d detector, raster *imaging.Raster) (float64, error) {
	type outcome struct {
		score float64
		err   error
	}

	timeout := e.DetectorTimeout
	if timeout <= 0 {
		timeout = DefaultDetectorTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		score, err := d.fn(raster)
		ch <- outcome{score, err}
	}()

	select {
	case out := <-ch:
		return out.score, out.err
	case <-dctx.Done():
		return 0, fmt.Errorf("detector %s: %w", d.name, dctx.Err())
	}
}
