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

// Package policy collects reusable Update/Zero callback pairs for
// rrd.Ring and rrd.Stack. None of this is required by package rrd
// itself — a caller is always free to write its own callbacks — but
// the same handful of aggregation shapes (a running mean, a min/max
// envelope, carry-forward, pick-first) recur often enough to be worth
// giving a shared, generic home.
package policy

import (
	"github.com/ratboy666/crrd/rrd"
	"golang.org/x/exp/constraints"
)

// RunningMean returns the exponential running-mean policy: on update
// the active bucket is blended with the incoming sample weighted 1/n
// against n-1/n of its prior content; on a skipped (zero) bucket the
// incoming sample is smeared forward as the bucket's entire content.
// n is ordinarily the ring's width expressed in the same unit as the
// sample rate (e.g. width-in-seconds for a once-a-second feed).
func RunningMean[F constraints.Float](n F) (rrd.UpdateFunc[F], rrd.ZeroFunc[F]) {
	update := func(r *rrd.Ring[F], incoming *F) {
		active := r.Bucket(r.TailIndex())
		*active = *active - *active/n + *incoming/n
	}
	zero := func(r *rrd.Ring[F], incoming *F) {
		*r.Bucket(r.TailIndex()) = *incoming
	}
	return update, zero
}

// Range is a min/max envelope payload, widened by Envelope's update
// policy and carried forward unchanged by its zero policy.
type Range[T constraints.Integer] struct {
	Low, High T
}

// Envelope returns the widening-envelope policy of the low/high range
// over an ordered payload: update grows Low/High to bound every sample
// seen; zero copies the previous bucket's range forward rather than
// resetting it, since an uninitialized envelope would otherwise report
// a false [0,0] span for a gap with no samples in it. zero must not be
// used on a ring of capacity 1, since it reads the bucket immediately
// before tail.
func Envelope[T constraints.Integer]() (rrd.UpdateFunc[Range[T]], rrd.ZeroFunc[Range[T]]) {
	update := func(r *rrd.Ring[Range[T]], incoming *Range[T]) {
		active := r.Bucket(r.TailIndex())
		if incoming.Low < active.Low {
			active.Low = incoming.Low
		}
		if incoming.High > active.High {
			active.High = incoming.High
		}
	}
	zero := func(r *rrd.Ring[Range[T]], _ *Range[T]) {
		prev := (r.TailIndex() - 1 + r.Capacity()) % r.Capacity()
		*r.Bucket(r.TailIndex()) = *r.Bucket(prev)
	}
	return update, zero
}

// KeepFirst returns the policy that never overwrites a bucket once it
// has a value: update is a no-op, zero stores the incoming sample (the
// bucket's only value, which then stays fixed). This is the policy the
// original C implementation's header comment describes for transaction
// group tracking: "no average at all is needed, just do not overwrite
// the first recorded [value] in the time period."
func KeepFirst[P any]() (rrd.UpdateFunc[P], rrd.ZeroFunc[P]) {
	update := func(r *rrd.Ring[P], incoming *P) {}
	zero := func(r *rrd.Ring[P], incoming *P) {
		*r.Bucket(r.TailIndex()) = *incoming
	}
	return update, zero
}

// KeepLast returns the policy that always reflects the most recent
// sample: both update and zero overwrite the active bucket with the
// incoming value.
func KeepLast[P any]() (rrd.UpdateFunc[P], rrd.ZeroFunc[P]) {
	set := func(r *rrd.Ring[P], incoming *P) {
		*r.Bucket(r.TailIndex()) = *incoming
	}
	return set, set
}
