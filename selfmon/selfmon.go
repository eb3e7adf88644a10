//
// Copyright 2017 Gregory Trubetskoy. All Rights Reserved.
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

// Package selfmon periodically samples the daemon's own CPU and
// memory usage and retains the history through the same rrd.Stack
// machinery used for externally ingested series, rather than through
// a side channel that would need its own retention policy.
package selfmon

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/ratboy666/crrd/policy"
	"github.com/ratboy666/crrd/rrd"
)

// Stacks bundles the two self-monitoring stacks that Run feeds. They
// are deliberately kept out of the daemon's evictable registry (Run
// is the only writer and must never see one of them torn down by an
// eviction mid-tick); mu serializes Run's writes against QueryCPU's
// and QueryMem's reads instead, since rrd.Stack itself does no
// locking of its own.
type Stacks struct {
	mu  sync.Mutex
	CPU *rrd.Stack[float64] // percent, 0-100
	Mem *rrd.Stack[float64] // bytes allocated and in use
}

// NewStacks builds the CPU and Mem stacks with the given ring specs
// (coarsest first, per rrd.NewStack's construction order) and a
// last-write-wins policy — a single instantaneous reading, not an
// average, is what each tick contributes.
func NewStacks(specs []rrd.RingSpec) (*Stacks, error) {
	update, zero := policy.KeepLast[float64]()
	cpuStack, err := rrd.NewStack[float64]("selfmon.cpu", specs, nil, update, zero)
	if err != nil {
		return nil, err
	}
	memStack, err := rrd.NewStack[float64]("selfmon.mem", specs, nil, update, zero)
	if err != nil {
		cpuStack.Destroy()
		return nil, err
	}
	return &Stacks{CPU: cpuStack, Mem: memStack}, nil
}

// Destroy destroys both stacks.
func (s *Stacks) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CPU.Destroy()
	s.Mem.Destroy()
}

// QueryCPU and QueryMem answer a point-in-time query against the
// respective stack, serialized against Run's writes.
func (s *Stacks) QueryCPU(t rrd.Time) (value *float64, width rrd.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CPU.Query(t)
}

func (s *Stacks) QueryMem(t rrd.Time) (value *float64, width rrd.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Mem.Query(t)
}

// Run samples CPU percent and allocated heap bytes every interval and
// feeds them into Stacks, until ctx is cancelled. clock supplies the
// timestamp for each sample; Run never reads the wall clock itself.
func Run(ctx context.Context, stacks *Stacks, interval time.Duration, clock func() rrd.Time) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := clock()

			percents, err := cpu.Percent(0, false)

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)

			stacks.mu.Lock()
			if err == nil && len(percents) > 0 {
				stacks.CPU.AddAt(percents[0], now)
			}
			stacks.Mem.AddAt(float64(mem.Alloc), now)
			stacks.mu.Unlock()
		}
	}
}
