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

package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/ratboy666/crrd/policy"
	"github.com/ratboy666/crrd/rrd"
)

func newTestStack(t *testing.T) *rrd.Stack[float64] {
	t.Helper()
	update, zero := policy.KeepLast[float64]()
	s, err := rrd.NewStack[float64]("test", []rrd.RingSpec{{Name: "s", Width: 10, Capacity: 3}}, nil, update, zero)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg, err := New(2)
	if err != nil {
		t.Fatal(err)
	}
	s := newTestStack(t)
	Register(reg, "cpu.host1", s)

	got, ok, err := Lookup[float64](reg, "cpu.host1")
	if err != nil || !ok {
		t.Fatalf("Lookup = %v, %v, %v, want stack, true, nil", got, ok, err)
	}
	if got != s {
		t.Errorf("Lookup returned a different stack than was registered")
	}
}

func TestRegistry_LookupMissingIsNotFoundNotError(t *testing.T) {
	reg, _ := New(2)
	_, ok, err := Lookup[float64](reg, "nope")
	if ok || err != nil {
		t.Errorf("Lookup of missing name = %v, %v, want false, nil", ok, err)
	}
}

func TestRegistry_LookupWrongTypeErrors(t *testing.T) {
	reg, _ := New(2)
	Register(reg, "cpu.host1", newTestStack(t))

	_, ok, err := Lookup[int64](reg, "cpu.host1")
	if ok || err == nil {
		t.Errorf("Lookup with mismatched payload type = %v, %v, want false, non-nil error", ok, err)
	}
}

func TestRegistry_EvictionDestroysStack(t *testing.T) {
	reg, _ := New(1)
	first := newTestStack(t)
	Register(reg, "a", first)
	Register(reg, "b", newTestStack(t)) // evicts "a"

	if _, ok, _ := Lookup[float64](reg, "a"); ok {
		t.Errorf("evicted entry %q still present", "a")
	}
	if len(first.Rings()) != 0 {
		t.Errorf("evicted stack was not destroyed")
	}
	_, _, evictions := reg.Stats()
	if evictions != 1 {
		t.Errorf("evictions = %d, want 1", evictions)
	}
}

func TestRegistry_EvictionDoesNotDeadlock(t *testing.T) {
	reg, _ := New(1)
	const rounds = 50
	stacks := make([]*rrd.Stack[float64], 2*rounds)
	for i := range stacks {
		stacks[i] = newTestStack(t)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < rounds; i++ {
			Register(reg, "a", stacks[2*i])
			Register(reg, "b", stacks[2*i+1]) // evicts "a" every pass
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("repeated eviction deadlocked")
	}
}

func TestRegistry_WithStackSerializesConcurrentCallers(t *testing.T) {
	reg, _ := New(4)
	Register(reg, "a", newTestStack(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			found, err := WithStack[float64](reg, "a", func(s *rrd.Stack[float64]) {
				s.AddAt(v, rrd.Time(0))
			})
			if err != nil || !found {
				t.Errorf("WithStack = %v, %v, want true, nil", found, err)
			}
		}(float64(i))
	}
	wg.Wait()
}

func TestRegistry_CloseDestroysEverything(t *testing.T) {
	reg, _ := New(4)
	s := newTestStack(t)
	Register(reg, "a", s)
	reg.Close()

	if len(s.Rings()) != 0 {
		t.Errorf("Close did not destroy registered stacks")
	}
	if reg.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", reg.Len())
	}
}
