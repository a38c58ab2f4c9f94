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
	copyMovePatchRadius  = 8
	copyMoveMaxKeypoints = 400
	copyMoveMinKeypoints = 10
	copyMoveRatioTest    = 0.7
	// Matches closer than this many pixels are trivial self-overlap, not
	// duplicated content.
	copyMoveMinSpatialDist = 16.0
)

type keypoint struct {
	x, y     int
	response float64
}

// descriptor is a rotation-tolerant fingerprint of the patch around a
// keypoint: mean and deviation per concentric ring, normalized by the
// patch's own statistics so duplicated regions match regardless of
// orientation or brightness offset.
type descriptor [8]float64

// detectCopyMove finds duplicated regions by self-matching keypoint
// descriptors. Each descriptor is matched against its two nearest
// non-identical neighbors; a match passing the distance-ratio test and a
// minimum spatial separation counts as copy-move evidence.
func detectCopyMove(r *imaging.Raster) (float64, error) {
	kps := findKeypoints(r)
	if len(kps) < copyMoveMinKeypoints {
		return 0, nil
	}

	descs := make([]descriptor, len(kps))
	for i, kp := range kps {
		descs[i] = describePatch(r, kp.x, kp.y)
	}

	good := 0
	for i := range descs {
		best, second := math.MaxFloat64, math.MaxFloat64
		bestIdx := -1
		for j := range descs {
			if i == j {
				continue
			}
			d := descDistance(descs[i], descs[j])
			if d < best {
				second = best
				best, bestIdx = d, j
			} else if d < second {
				second = d
			}
		}
		if bestIdx < 0 || second == 0 {
			continue
		}
		dx := float64(kps[i].x - kps[bestIdx].x)
		dy := float64(kps[i].y - kps[bestIdx].y)
		if math.Hypot(dx, dy) < copyMoveMinSpatialDist {
			continue
		}
		if best < copyMoveRatioTest*second {
			good++
		}
	}

	ratio := float64(good) / float64(len(kps))
	return clamp01(2.0 * ratio), nil
}

// findKeypoints picks local maxima of a gradient-energy corner response on a
// coarse grid, strongest first, capped at copyMoveMaxKeypoints.
func findKeypoints(r *imaging.Raster) []keypoint {
	const step = 4
	var kps []keypoint

	margin := copyMovePatchRadius + 1
	for y := margin; y < r.Height-margin; y += step {
		for x := margin; x < r.Width-margin; x += step {
			gx := r.GrayAt(x+1, y) - r.GrayAt(x-1, y)
			gy := r.GrayAt(x, y+1) - r.GrayAt(x, y-1)
			resp := gx*gx + gy*gy
			if resp > 100 { // flat paper background produces no keypoints
				kps = append(kps, keypoint{x: x, y: y, response: resp})
			}
		}
	}

	sort.Slice(kps, func(i, j int) bool { return kps[i].response > kps[j].response })
	if len(kps) > copyMoveMaxKeypoints {
		kps = kps[:copyMoveMaxKeypoints]
	}
	return kps
}

func describePatch(r *imaging.Raster, cx, cy int) descriptor {
	// Ring edges at radius 2, 4, 6, 8.
	var sum, sqSum [4]float64
	var count [4]int
	var patchSum float64
	patchN := 0

	for dy := -copyMovePatchRadius; dy <= copyMovePatchRadius; dy++ {
		for dx := -copyMovePatchRadius; dx <= copyMovePatchRadius; dx++ {
			dist := math.Hypot(float64(dx), float64(dy))
			if dist > copyMovePatchRadius {
				continue
			}
			v := r.GrayAt(cx+dx, cy+dy)
			ring := int(dist) / 2
			if ring > 3 {
				ring = 3
			}
			sum[ring] += v
			sqSum[ring] += v * v
			count[ring]++
			patchSum += v
			patchN++
		}
	}

	patchMean := patchSum / float64(patchN)

	var d descriptor
	for i := 0; i < 4; i++ {
		if count[i] == 0 {
			continue
		}
		mean := sum[i] / float64(count[i])
		variance := sqSum[i]/float64(count[i]) - mean*mean
		if variance < 0 {
			variance = 0
		}
		d[i] = mean - patchMean
		d[i+4] = math.Sqrt(variance)
	}
	return d
}

func descDistance(a, b descriptor) float64 {
	var s float64
	for i := range a {
		diff := a[i] - b[i]
		s += diff * diff
	}
	return math.Sqrt(s)
}
