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

package ingest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	pickle "github.com/hydrogen18/stalecucumber"

	"github.com/ratboy666/crrd/rrd"
)

// ReadPickleFrame reads one length-prefixed pickle frame from r: a
// big-endian uint32 byte count followed by that many bytes of pickled
// data. This is the framing the Python pickle-protocol metrics
// listener uses, one frame per batch of samples.
func ReadPickleFrame(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("ingest: short pickle frame: %w", err)
	}
	return buf, nil
}

// DecodePickle unpickles a frame's payload: a list of (name, (ts,
// value)) tuples. value may be pickled as either a Python float or a
// Python int; both are accepted and widened to float64.
func DecodePickle(frame []byte) ([]Sample, error) {
	items, err := pickle.ListOrTuple(pickle.Unpickle(bytes.NewReader(frame)))
	if err != nil {
		return nil, fmt.Errorf("ingest: unpickling frame: %w", err)
	}

	samples := make([]Sample, 0, len(items))
	for _, item := range items {
		itemSlice, err := pickle.ListOrTuple(item, nil)
		if err != nil {
			return nil, fmt.Errorf("ingest: decoding item: %w", err)
		}
		if len(itemSlice) != 2 {
			return nil, fmt.Errorf("ingest: item has %d elements, want 2", len(itemSlice))
		}

		name, err := pickle.String(itemSlice[0], nil)
		if err != nil {
			return nil, fmt.Errorf("ingest: decoding name: %w", err)
		}

		dp, err := pickle.ListOrTuple(itemSlice[1], nil)
		if err != nil || len(dp) != 2 {
			return nil, fmt.Errorf("ingest: decoding datapoint for %q", name)
		}

		ts, err := pickle.Int(dp[0], nil)
		if err != nil {
			return nil, fmt.Errorf("ingest: decoding timestamp for %q: %w", name, err)
		}

		value, err := pickle.Float(dp[1], nil)
		if err != nil {
			if _, wrongType := err.(pickle.WrongTypeError); !wrongType {
				return nil, fmt.Errorf("ingest: decoding value for %q: %w", name, err)
			}
			intValue, err := pickle.Int(dp[1], nil)
			if err != nil {
				return nil, fmt.Errorf("ingest: decoding value for %q: %w", name, err)
			}
			value = float64(intValue)
		}

		samples = append(samples, Sample{Name: name, Value: value, T: rrd.Time(ts)})
	}
	return samples, nil
}
