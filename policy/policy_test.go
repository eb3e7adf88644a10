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

package policy

import (
	"math"
	"testing"

	"github.com/ratboy666/crrd/rrd"
)

func TestRunningMean_SameBucketBlends(t *testing.T) {
	update, zero := RunningMean[float64](30)
	r, _ := rrd.NewRing[float64]("test", 30, 10, nil, update, zero)

	r.InsertAt(10.0, 0)
	r.InsertAt(40.0, 10)

	want := 10.0 - 10.0/30.0 + 40.0/30.0
	if got := *r.Get(0); math.Abs(got-want) > 1e-9 {
		t.Errorf("Get(0) = %v, want %v", got, want)
	}
}

func TestRunningMean_GapSmearsForward(t *testing.T) {
	update, zero := RunningMean[float64](10)
	r, _ := rrd.NewRing[float64]("test", 10, 5, nil, update, zero)

	r.InsertAt(1.0, 0)
	r.InsertAt(2.0, 25)

	if got := *r.Get(1); got != 2.0 {
		t.Errorf("Get(1) = %v, want 2.0 (smeared forward from incoming sample)", got)
	}
}

func TestEnvelope_WidensOnUpdate(t *testing.T) {
	update, zero := Envelope[uint64]()
	r, _ := rrd.NewRing[Range[uint64]]("txg", 1, 10, nil, update, zero)

	r.InsertAt(Range[uint64]{Low: 5, High: 5}, 0)
	r.InsertAt(Range[uint64]{Low: 2, High: 9}, 0)

	got := *r.Get(0)
	if got.Low != 2 || got.High != 9 {
		t.Errorf("Get(0) = %+v, want {Low:2 High:9}", got)
	}
}

func TestEnvelope_ZeroCarriesPreviousRangeForward(t *testing.T) {
	update, zero := Envelope[uint64]()
	r, _ := rrd.NewRing[Range[uint64]]("txg", 1, 10, nil, update, zero)

	r.InsertAt(Range[uint64]{Low: 3, High: 3}, 0)
	r.InsertAt(Range[uint64]{Low: 7, High: 7}, 2) // skips bucket at t=1

	if got := *r.Get(1); got.Low != 3 || got.High != 3 {
		t.Errorf("Get(1) (skipped bucket) = %+v, want carried-forward {Low:3 High:3}", got)
	}
}

func TestKeepFirst_IgnoresSubsequentSamples(t *testing.T) {
	update, zero := KeepFirst[float64]()
	r, _ := rrd.NewRing[float64]("test", 30, 10, nil, update, zero)

	r.InsertAt(9.0, 5)
	r.InsertAt(123.0, 6)

	if got := *r.Get(0); got != 9.0 {
		t.Errorf("Get(0) = %v, want 9.0", got)
	}
}

func TestKeepLast_AlwaysOverwrites(t *testing.T) {
	update, zero := KeepLast[float64]()
	r, _ := rrd.NewRing[float64]("test", 30, 10, nil, update, zero)

	r.InsertAt(9.0, 5)
	r.InsertAt(123.0, 6)

	if got := *r.Get(0); got != 123.0 {
		t.Errorf("Get(0) = %v, want 123.0", got)
	}
}
