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

import "fmt"

// RingSpec describes one resolution level of a Stack.
type RingSpec struct {
	Name     string
	Width    Time
	Capacity int
}

// Stack is an ordered sequence of Rings of increasing bucket width,
// all sharing the same payload type and Update/Zero policy pair. It
// fans every insert out to every Ring and answers point-in-time
// queries by walking finest-to-coarsest, returning the first (and
// therefore most precise) Ring whose retained horizon covers the
// query. A Stack owns every Ring in it exclusively.
type Stack[P any] struct {
	name  string
	rings []*Ring[P] // finest first: the access/query order
}

// NewStack builds a Stack of Rings, one per spec. specs must be given
// in descending-width order (coarsest first) — NewStack stores them
// in the opposite order internally, so that the first ring walked by
// Query is always the finest. Any failure while constructing a later
// ring tears down every ring already constructed and returns an
// error; a Stack is never left partially built.
func NewStack[P any](name string, specs []RingSpec, ctx any, update UpdateFunc[P], zero ZeroFunc[P]) (*Stack[P], error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("rrd: stack %q: at least one ring spec is required", name)
	}

	rings := make([]*Ring[P], len(specs))
	for i, spec := range specs {
		r, err := NewRing[P](spec.Name, spec.Width, spec.Capacity, ctx, update, zero)
		if err != nil {
			for j := 0; j < i; j++ {
				rings[j].Destroy()
			}
			return nil, fmt.Errorf("rrd: stack %q: %w", name, err)
		}
		rings[i] = r
	}

	for i, j := 0, len(rings)-1; i < j; i, j = i+1, j-1 {
		rings[i], rings[j] = rings[j], rings[i]
	}

	return &Stack[P]{name: name, rings: rings}, nil
}

// Name returns the stack's informational name.
func (s *Stack[P]) Name() string { return s.name }

// Rings returns the stack's rings, finest first. The slice is owned
// by the Stack; callers must not mutate it.
func (s *Stack[P]) Rings() []*Ring[P] { return s.rings }

// AddAt fans a single timestamped sample out to every ring in the
// stack. By the time AddAt returns, every ring has either accepted
// the sample (its Last equals t) or rejected it as backdated
// (t was less than that ring's own Last); no partial fan-out is ever
// observable afterwards.
func (s *Stack[P]) AddAt(v P, t Time) {
	for _, r := range s.rings {
		r.InsertAt(v, t)
	}
}

// AddNow calls AddAt with a timestamp obtained from clock. The Stack
// never reads a clock itself; acquiring "now" is always the caller's
// responsibility, this is purely a convenience wrapper.
func (s *Stack[P]) AddNow(v P, clock func() Time) {
	s.AddAt(v, clock())
}

// Query returns the bucket covering instant t at the finest retained
// resolution. It returns ok == false if t is after the most recent
// sample seen by the finest ring, if the finest ring has no data yet,
// or if t predates the retained horizon of every ring in the stack.
func (s *Stack[P]) Query(t Time) (p *P, width Time, ok bool) {
	finest := s.rings[0]
	if finest.Length() == 0 || t > finest.Last() {
		return nil, 0, false
	}

	for _, r := range s.rings {
		length := r.Length()
		if length == 0 {
			continue
		}

		t0 := BucketStart(t, r.Width())
		horizonLow := r.Start() - r.Width()*Time(length-1)

		if t0 >= horizonLow {
			i := int((t0 - horizonLow) / r.Width())
			if bucket := r.Get(i); bucket != nil {
				return bucket, r.Width(), true
			}
		}
	}

	return nil, 0, false
}

// Destroy destroys every ring in the stack, in order.
func (s *Stack[P]) Destroy() {
	for _, r := range s.rings {
		r.Destroy()
	}
	s.rings = nil
}
