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
	"sort"

	"github.com/dominikschlosser/certverify/internal/imaging"
)

const (
	regionBlockSize = 32
	// Blocks whose noise deviation differs from the global one by more than
	// this many global standard deviations are flagged.
	regionSigmaFactor = 2.0
)

// findSuspiciousRegions flags blocks whose local noise deviation is far from
// the global one and merges the resulting boxes into maximal rectangles.
func findSuspiciousRegions(r *imaging.Raster) ([]BBox, error) {
	noise := noiseResidual(r)

	globalStd := planeStdDev(noise)
	if globalStd == 0 {
		return nil, nil
	}

	var regions []BBox
	step := regionBlockSize / 2
	for y := 0; y+regionBlockSize <= r.Height; y += step {
		for x := 0; x+regionBlockSize <= r.Width; x += step {
			blockStd := math.Sqrt(blockVariance(noise, r.Width, x, y, regionBlockSize))
			if math.Abs(blockStd-globalStd) > regionSigmaFactor*globalStd {
				regions = append(regions, BBox{X0: x, Y0: y, X1: x + regionBlockSize, Y1: y + regionBlockSize})
			}
		}
	}

	return MergeRegions(regions), nil
}

// MergeRegions merges overlapping bounding boxes into maximal rectangles.
// Boxes are processed sorted by X0; an incoming box overlapping the last
// merged one extends it.
func MergeRegions(regions []BBox) []BBox {
	if len(regions) == 0 {
		return nil
	}

	sorted := make([]BBox, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].X0 < sorted[j].X0 })

	merged := []BBox{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.X0 <= last.X1 && cur.Y0 <= last.Y1 && cur.X1 >= last.X0 && cur.Y1 >= last.Y0 {
			last.X0 = min(last.X0, cur.X0)
			last.Y0 = min(last.Y0, cur.Y0)
			last.X1 = max(last.X1, cur.X1)
			last.Y1 = max(last.Y1, cur.Y1)
		} else {
			merged = append(merged, cur)
		}
	}
	return merged
}

func planeStdDev(plane []float64) float64 {
	var sum, sqSum float64
	for _, v := range plane {
		sum += v
		sqSum += v * v
	}
	n := float64(len(plane))
	mean := sum / n
	variance := sqSum/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
