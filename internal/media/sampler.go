// Copyright 2025 SnapEvent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package media obtains decodable video and audio from remote sources and
// decomposes it into sampled frames and a bounded audio track. This file
// implements the frame sampler, which chooses which timestamps are worth
// decoding.
//
// Title and date graphics cluster near the start of event videos, so the
// sampler walks an early window densely, then spreads the remaining budget
// across the middle of the media. The trailing 10% is excluded to avoid
// credits and black frames.
package media

import (
	"math"
	"sort"
)

const (
	// MaxFrameSamples is the hard cap on sampled timestamps regardless of
	// the requested count.
	MaxFrameSamples = 15

	earlyWindowCapSeconds = 60.0
	earlyStepSeconds      = 10.0
)

// Sample returns the timestamps (in seconds) to extract frames at. The
// result always contains 0, is strictly ascending with no duplicates, has
// at most MaxFrameSamples entries, and every timestamp is below the
// duration. There is no error path: a nonsensical duration still yields {0}.
func Sample(durationSeconds float64, desiredCount int) []float64 {
	if durationSeconds <= 0 {
		return []float64{0}
	}
	if desiredCount < 1 {
		desiredCount = 1
	}

	seen := map[float64]bool{0: true}
	out := []float64{0}
	add := func(t float64) {
		t = math.Round(t*10) / 10
		if t >= durationSeconds || seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	earlyWindow := math.Min(earlyWindowCapSeconds, durationSeconds*0.20)
	for t := earlyStepSeconds; t <= earlyWindow; t += earlyStepSeconds {
		add(t)
	}

	remaining := desiredCount - len(out)
	if remaining > 0 {
		start := math.Max(earlyWindow, durationSeconds*0.10)
		end := durationSeconds * 0.90
		if end > start {
			step := (end - start) / float64(remaining)
			for i := 1; i <= remaining; i++ {
				add(start + step*float64(i))
			}
		}
	}

	sort.Float64s(out)
	if len(out) > MaxFrameSamples {
		out = out[:MaxFrameSamples]
	}
	return out
}
