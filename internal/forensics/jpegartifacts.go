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
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/dominikschlosser/certverify/internal/imaging"
)

// detectJPEGArtifacts averages a blocking-artifact score (pixel
// discontinuity at 8-pixel block boundaries) and a ringing-artifact score
// (gradient variance near strong edges).
func detectJPEGArtifacts(r *imaging.Raster) (float64, error) {
	blocking := blockingScore(r)
	ringing := ringingScore(r)
	return clamp01((blocking + ringing) / 2.0), nil
}

func blockingScore(r *imaging.Raster) float64 {
	var hDiffs, vDiffs []float64

	for y := 0; y < r.Height; y += 8 {
		if y+1 >= r.Height {
			break
		}
		var sum float64
		for x := 0; x < r.Width; x++ {
			sum += math.Abs(r.GrayAt(x, y) - r.GrayAt(x, y+1))
		}
		hDiffs = append(hDiffs, sum/float64(r.Width))
	}

	for x := 0; x < r.Width; x += 8 {
		if x+1 >= r.Width {
			break
		}
		var sum float64
		for y := 0; y < r.Height; y++ {
			sum += math.Abs(r.GrayAt(x, y) - r.GrayAt(x+1, y))
		}
		vDiffs = append(vDiffs, sum/float64(r.Height))
	}

	if len(hDiffs) == 0 || len(vDiffs) == 0 {
		return 0
	}
	return clamp01((stat.Mean(hDiffs, nil) + stat.Mean(vDiffs, nil)) / 100.0)
}

// ringingScore measures oscillation next to sharp edges: the standard
// deviation of gradient magnitude over edge-adjacent pixels.
func ringingScore(r *imaging.Raster) float64 {
	const edgeThreshold = 100.0

	var edgeGradients []float64
	for y := 1; y < r.Height-1; y++ {
		for x := 1; x < r.Width-1; x++ {
			gx := sobelX(r, x, y)
			gy := sobelY(r, x, y)
			mag := math.Hypot(gx, gy)
			if mag > edgeThreshold {
				edgeGradients = append(edgeGradients, mag)
			}
		}
	}

	if len(edgeGradients) < 2 {
		return 0
	}
	return clamp01(stat.StdDev(edgeGradients, nil) / 100.0)
}

func sobelX(r *imaging.Raster, x, y int) float64 {
	return (r.GrayAt(x+1, y-1) + 2*r.GrayAt(x+1, y) + r.GrayAt(x+1, y+1)) -
		(r.GrayAt(x-1, y-1) + 2*r.GrayAt(x-1, y) + r.GrayAt(x-1, y+1))
}

func sobelY(r *imaging.Raster, x, y int) float64 {
	return (r.GrayAt(x-1, y+1) + 2*r.GrayAt(x, y+1) + r.GrayAt(x+1, y+1)) -
		(r.GrayAt(x-1, y-1) + 2*r.GrayAt(x, y-1) + r.GrayAt(x+1, y-1))
}
