//
// Copyright 2015 Gregory Trubetskoy. All Rights Reserved.
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

// Package whimport replays a legacy Whisper archive file's points
// into a freshly built rrd.Stack, for migrating off an earlier
// graphite-style deployment without losing history. This was heavily
// inspired by https://github.com/vimeo/whisper-to-influxdb, replaying
// points straight into an in-process stack rather than sending them
// over the network.
package whimport

import (
	"fmt"
	"os"
	"sort"

	"github.com/kisielk/whisper-go/whisper"

	"github.com/ratboy666/crrd/policy"
	"github.com/ratboy666/crrd/rrd"
)

// RingSpecs derives one rrd.RingSpec per Whisper archive, coarsest
// first (Whisper's own archive order is finest first, the opposite of
// what rrd.NewStack expects). Archive retentions become ring
// capacities directly: a Whisper archive of N points at step S seconds
// retains exactly what a ring of width S and capacity N does.
func RingSpecs(w *whisper.Whisper) []rrd.RingSpec {
	specs := make([]rrd.RingSpec, len(w.Header.Archives))
	for i, a := range w.Header.Archives {
		specs[len(specs)-1-i] = rrd.RingSpec{
			Name:     fmt.Sprintf("archive%d", i),
			Width:    rrd.Time(a.SecondsPerPoint),
			Capacity: int(a.Points),
		}
	}
	return specs
}

// Import opens a Whisper file at path and replays its points into a
// new stack built with policy.RunningMean over the file's own archive
// retentions. Points that Whisper marks unfilled (timestamp == 0) are
// skipped, matching Whisper's own "None" convention.
func Import(path string) (*rrd.Stack[float64], error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("whimport: opening %q: %w", path, err)
	}
	defer fd.Close()

	w, err := whisper.OpenWhisper(fd)
	if err != nil {
		return nil, fmt.Errorf("whimport: opening whisper archive %q: %w", path, err)
	}
	defer w.Close()

	specs := RingSpecs(w)
	widestStep := w.Header.Archives[len(w.Header.Archives)-1].SecondsPerPoint
	update, zero := policy.RunningMean[float64](float64(widestStep))
	stack, err := rrd.NewStack[float64](path, specs, nil, update, zero)
	if err != nil {
		return nil, fmt.Errorf("whimport: building stack for %q: %w", path, err)
	}

	// Replay coarsest archive first so that gap-fill inside each ring
	// only ever runs forward in time, exactly as a live feed would.
	for i := len(w.Header.Archives) - 1; i >= 0; i-- {
		points, err := w.DumpArchive(i)
		if err != nil {
			stack.Destroy()
			return nil, fmt.Errorf("whimport: reading archive %d of %q: %w", i, path, err)
		}

		filtered := points[:0]
		for _, p := range points {
			if p.Timestamp != 0 {
				filtered = append(filtered, p)
			}
		}
		sort.Slice(filtered, func(a, b int) bool { return filtered[a].Timestamp < filtered[b].Timestamp })

		for _, p := range filtered {
			stack.AddAt(p.Value, rrd.Time(p.Timestamp))
		}
	}

	return stack, nil
}
