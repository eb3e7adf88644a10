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

// Package registry is a bounded, named directory of live rrd.Stack
// instances. A daemon accepting samples for an arbitrary, dynamically
// discovered set of series needs somewhere to keep the stacks it has
// already built so the next sample for the same name doesn't trigger
// another construction; registry is that somewhere, with a capacity
// bound so a daemon fed an unbounded number of distinct series names
// doesn't grow without limit.
package registry

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ratboy666/crrd/rrd"
)

type entry struct {
	name    string
	mu      sync.Mutex
	stack   any
	destroy func()
}

// destroyLocked takes the entry's own lock before destroying the
// stack underneath it, so a WithStack call already in flight against
// this entry finishes before eviction/removal tears the stack down.
func (e *entry) destroyLocked() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroy()
}

// Registry is a capacity-bounded, name-keyed cache of stacks. Eviction
// under the hood destroys the evicted stack: capacity here really is a
// memory bound, not just a lookup-speed knob. The zero value is not
// usable; construct one with New.
type Registry struct {
	mu        sync.Mutex
	cache     *lru.Cache
	evictions int
	hits      int
	misses    int
}

// New returns a Registry that holds at most capacity stacks. capacity
// must be >= 1.
func New(capacity int) (*Registry, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("registry: capacity must be >= 1, got %d", capacity)
	}
	reg := &Registry{}
	cache, err := lru.NewWithEvict(capacity, reg.onEvicted)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	reg.cache = cache
	return reg, nil
}

// onEvicted runs synchronously inside cache.Add/cache.Purge, always on
// a goroutine that already holds reg.mu (Register, Remove, Close) — it
// must not try to take the lock itself.
func (reg *Registry) onEvicted(_, val interface{}) {
	e := val.(*entry)
	e.destroyLocked()
	reg.evictions++
}

// Register adds a stack under name, destroying and replacing any stack
// already registered under that name. The registry takes ownership:
// the stack is destroyed either when it is evicted to make room for
// another, or when Close is called on the registry.
func Register[P any](reg *Registry, name string, s *rrd.Stack[P]) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if old, ok := reg.cache.Peek(name); ok {
		old.(*entry).destroyLocked()
	}
	reg.cache.Add(name, &entry{name: name, stack: s, destroy: s.Destroy})
}

// wrongTypeError is returned by Lookup and WithStack when name is
// registered but under a different payload type than the one requested.
type wrongTypeError struct {
	name string
}

func (e *wrongTypeError) Error() string {
	return fmt.Sprintf("registry: %q is registered with a different payload type", e.name)
}

// Lookup returns the stack registered under name, asserting it holds
// payload type P. ok is false if no stack is registered under that
// name; err is non-nil (and ok is false) if a stack is registered but
// was built with a different payload type.
//
// The returned stack does no locking of its own (rrd.Ring and
// rrd.Stack are deliberately unsynchronized). Lookup is safe to call
// concurrently, but calling AddAt/Query/etc. on the stack it returns
// is only safe if the caller is the sole user of that name, or
// otherwise serializes its own access. Callers that share a name
// across goroutines should use WithStack instead.
func Lookup[P any](reg *Registry, name string) (s *rrd.Stack[P], ok bool, err error) {
	reg.mu.Lock()
	val, found := reg.cache.Get(name)
	if found {
		reg.hits++
	} else {
		reg.misses++
	}
	reg.mu.Unlock()

	if !found {
		return nil, false, nil
	}
	e := val.(*entry)
	s, ok = e.stack.(*rrd.Stack[P])
	if !ok {
		return nil, false, &wrongTypeError{name: e.name}
	}
	return s, true, nil
}

// WithStack runs fn with the stack registered under name, holding a
// per-entry lock for the duration of the call so that concurrent
// WithStack calls against the same name never overlap. found is false
// if no stack is registered under that name; err is non-nil (and
// found is false) if a stack is registered but was built with a
// different payload type. This is the safe way to reach a stack that
// more than one goroutine (an ingest listener and a query handler, for
// instance) may touch.
func WithStack[P any](reg *Registry, name string, fn func(*rrd.Stack[P])) (found bool, err error) {
	reg.mu.Lock()
	val, found := reg.cache.Get(name)
	if found {
		reg.hits++
	} else {
		reg.misses++
	}
	reg.mu.Unlock()

	if !found {
		return false, nil
	}
	e := val.(*entry)
	s, ok := e.stack.(*rrd.Stack[P])
	if !ok {
		return false, &wrongTypeError{name: e.name}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(s)
	return true, nil
}

// Remove destroys and removes the stack registered under name, if any.
func (reg *Registry) Remove(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if val, ok := reg.cache.Peek(name); ok {
		val.(*entry).destroyLocked()
		reg.cache.Remove(name)
	}
}

// Len returns the number of stacks currently registered.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.cache.Len()
}

// Stats returns the registry's hit/miss/eviction counters.
func (reg *Registry) Stats() (hits, misses, evictions int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.hits, reg.misses, reg.evictions
}

// Close destroys every registered stack and empties the registry.
func (reg *Registry) Close() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, key := range reg.cache.Keys() {
		if val, ok := reg.cache.Peek(key); ok {
			val.(*entry).destroyLocked()
		}
	}
	reg.cache.Purge()
}
