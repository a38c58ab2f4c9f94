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
	"gonum.org/v1/gonum/stat"

	"github.com/dominikschlosser/certverify/internal/imaging"
)

const (
	noiseBlockSize = 64
	noiseSmoothRad = 2 // 5x5 smoothing window
)

// detectNoiseInconsistency extracts the noise residual (image minus a
// smoothed copy) and measures how much local noise variance differs across
// the image. Genuine sensor noise is uniform; splice or inpaint edits carry
// a different noise signature in the edited region.
func detectNoiseInconsistency(r *imaging.Raster) (float64, error) {
	noise := noiseResidual(r)

	var variances []float64
	step := noiseBlockSize / 2
	for y := 0; y+noiseBlockSize <= r.Height; y += step {
		for x := 0; x+noiseBlockSize <= r.Width; x += step {
			variances = append(variances, blockVariance(noise, r.Width, x, y, noiseBlockSize))
		}
	}
	if len(variances) == 0 {
		return 0, nil
	}

	mean := stat.Mean(variances, nil)
	if mean == 0 {
		return 0, nil
	}
	cv := stat.StdDev(variances, nil) / mean

	return clamp01(cv / 2.0), nil
}

// noiseResidual returns gray minus a box-smoothed copy, row-major.
func noiseResidual(r *imaging.Raster) []float64 {
	out := make([]float64, r.Width*r.Height)
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			var sum float64
			var n int
			for dy := -noiseSmoothRad; dy <= noiseSmoothRad; dy++ {
				for dx := -noiseSmoothRad; dx <= noiseSmoothRad; dx++ {
					xx, yy := x+dx, y+dy
					if xx < 0 || yy < 0 || xx >= r.Width || yy >= r.Height {
						continue
					}
					sum += r.Gray[yy*r.Width+xx]
					n++
				}
			}
			out[y*r.Width+x] = r.Gray[y*r.Width+x] - sum/float64(n)
		}
	}
	return out
}

func blockVariance(plane []float64, width, x0, y0, size int) float64 {
	var sum, sqSum float64
	n := size * size
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			v := plane[y*width+x]
			sum += v
			sqSum += v * v
		}
	}
	mean := sum / float64(n)
	variance := sqSum/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return variance
}
