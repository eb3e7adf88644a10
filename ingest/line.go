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

// Package ingest decodes samples arriving over the network in the two
// wire forms a plaintext-metrics daemon typically has to accept: a
// whitespace-separated text line, and a length-prefixed pickled list
// of tuples. Decoding is kept separate from the network loop and from
// the registry lookup so each can be tested without the other.
package ingest

import (
	"fmt"
	"strings"

	"github.com/ratboy666/crrd/rrd"
)

// Sample is one decoded (name, value, timestamp) triple, independent
// of which wire form it arrived in.
type Sample struct {
	Name  string
	Value float64
	T     rrd.Time
}

// ParseLine decodes a single "name value timestamp" line, the form
// used by the plaintext line protocol. A timestamp of -1 is rejected
// rather than silently mapped to "now": this package does no clock
// access, leaving that decision entirely to the caller.
func ParseLine(line string) (Sample, error) {
	var (
		name  string
		value float64
		ts    int64
	)

	if n, err := fmt.Sscanf(line, "%s %f %d", &name, &value, &ts); n != 3 || err != nil {
		return Sample{}, fmt.Errorf("ingest: malformed line %q: %w", strings.TrimSpace(line), err)
	}
	if ts < 0 {
		return Sample{}, fmt.Errorf("ingest: malformed line %q: negative timestamp", strings.TrimSpace(line))
	}

	return Sample{Name: name, Value: value, T: rrd.Time(ts)}, nil
}
