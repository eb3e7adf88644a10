//
// Copyright 2016 Gregory Trubetskoy. All Rights Reserved.
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

package rrd

import (
	"testing"
	"time"
)

func isoUnix(s string) Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return Time(t.Unix())
}

func TestBucketStart_Table(t *testing.T) {
	cases := []struct {
		ts   string
		w    Time
		want string
	}{
		{"2024-01-02T10:04:10Z", 30, "2024-01-02T10:04:00Z"},
		{"2024-01-02T10:04:29Z", 30, "2024-01-02T10:04:00Z"},
		{"2024-01-02T10:04:30Z", 30, "2024-01-02T10:04:30Z"},
		{"2024-01-02T10:04:10Z", 60, "2024-01-02T10:04:00Z"},
		{"2024-01-02T10:04:10Z", 3600, "2024-01-02T10:00:00Z"},
		{"2024-01-02T10:04:10Z", 86400, "2024-01-02T00:00:00Z"},
	}
	for _, c := range cases {
		got := BucketStart(isoUnix(c.ts), c.w)
		want := isoUnix(c.want)
		if got != want {
			t.Errorf("BucketStart(%s, %d) = %d, want %d", c.ts, c.w, got, want)
		}
	}
}

func TestBucketStart_Idempotent(t *testing.T) {
	for _, w := range []Time{1, 7, 30, 60, 3600, 86400} {
		for _, t0 := range []Time{0, 1, w - 1, w, w + 1, 1000 * w, -w, -1} {
			once := BucketStart(t0, w)
			twice := BucketStart(once, w)
			if once != twice {
				t.Errorf("BucketStart(BucketStart(%d, %d), %d) = %d, want %d", t0, w, w, twice, once)
			}
		}
	}
}

func TestBucketStart_AlignedMultiple(t *testing.T) {
	for _, w := range []Time{1, 30, 3600} {
		for k := Time(-5); k <= 5; k++ {
			kw := k * w
			if got := BucketStart(kw, w); got != kw {
				t.Errorf("BucketStart(%d*%d, %d) = %d, want %d", k, w, w, got, kw)
			}
		}
	}
}

func TestBucketStart_WithinBucket(t *testing.T) {
	w := Time(30)
	for k := Time(-3); k <= 3; k++ {
		kw := k * w
		for delta := Time(0); delta < w; delta++ {
			if got := BucketStart(kw+delta, w); got != kw {
				t.Errorf("BucketStart(%d+%d, %d) = %d, want %d", kw, delta, w, got, kw)
			}
		}
	}
}
