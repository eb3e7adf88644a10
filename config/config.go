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

// Package config loads the daemon's TOML configuration file: network
// listen specs and the named stacks it should build at startup, each
// with its aggregation policy and its coarsest-to-finest ring specs.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ratboy666/crrd/rrd"
)

// Config is the top-level shape of the daemon's config file.
type Config struct {
	PidPath                  string     `toml:"pid-file"`
	LogPath                  string     `toml:"log-file"`
	GraphiteTextListenSpec   string     `toml:"graphite-text-listen-spec"`
	GraphitePickleListenSpec string     `toml:"graphite-pickle-listen-spec"`
	HTTPListenSpec           string     `toml:"http-listen-spec"`
	SelfmonInterval          Duration   `toml:"selfmon-interval"`
	RegistryCapacity         int        `toml:"registry-capacity"`
	Stacks                   []StackDef `toml:"stack"`
}

// StackDef names one named stack to build at startup: which
// aggregation policy it uses and its ring specs, coarsest width
// first, matching rrd.NewStack's expected input order.
type StackDef struct {
	Name   string
	Policy string // "mean", "keep-first", or "keep-last"
	Rings  []RingDef
}

// RingDef is one resolution level of a StackDef, with a human-typed
// duration instead of a raw rrd.Time.
type RingDef struct {
	Width    Duration
	Capacity int
}

// Duration wraps a duration expressed in the config file as "30s",
// "1d", "1w", or "1y" — suffixes time.ParseDuration does not itself
// understand, following the same extension the original config
// parser made for RRA specs.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so toml.DecodeFile
// can populate Duration fields directly.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("config: invalid duration %q", s)
	}
	n, err := strconv.ParseInt(s[:len(s)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(n*24) * time.Hour, nil
	case 'w':
		return time.Duration(n*24*7) * time.Hour, nil
	case 'y':
		return time.Duration(n*24*365) * time.Hour, nil
	default:
		return 0, fmt.Errorf("config: invalid duration %q", s)
	}
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	cfg := &Config{RegistryCapacity: 256}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every StackDef's ring specs are well-formed and
// given coarsest-first, the order rrd.NewStack requires.
func (c *Config) Validate() error {
	if c.RegistryCapacity < 1 {
		return fmt.Errorf("config: registry-capacity must be >= 1, got %d", c.RegistryCapacity)
	}
	names := map[string]bool{}
	for _, s := range c.Stacks {
		if s.Name == "" {
			return fmt.Errorf("config: stack with empty name")
		}
		if names[s.Name] {
			return fmt.Errorf("config: duplicate stack name %q", s.Name)
		}
		names[s.Name] = true

		if len(s.Rings) == 0 {
			return fmt.Errorf("config: stack %q has no rings", s.Name)
		}
		for i, r := range s.Rings {
			if r.Width.Duration <= 0 {
				return fmt.Errorf("config: stack %q ring %d: width must be > 0", s.Name, i)
			}
			if r.Capacity < 1 {
				return fmt.Errorf("config: stack %q ring %d: capacity must be >= 1", s.Name, i)
			}
			if i > 0 && r.Width.Duration >= s.Rings[i-1].Width.Duration {
				return fmt.Errorf("config: stack %q: rings must be given coarsest-first, ring %d (%v) is not narrower than ring %d (%v)",
					s.Name, i, r.Width.Duration, i-1, s.Rings[i-1].Width.Duration)
			}
		}
		// "envelope" is deliberately not accepted here: policy.Envelope
		// carries a policy.Range[T] payload, but every config-declared
		// stack is built as a plain float64 stack (see cmd/crrdd's
		// buildStack), so there is no wired path for it to run on.
		if !strings.EqualFold(s.Policy, "mean") &&
			!strings.EqualFold(s.Policy, "keep-first") && !strings.EqualFold(s.Policy, "keep-last") {
			return fmt.Errorf("config: stack %q: unknown policy %q", s.Name, s.Policy)
		}
	}
	return nil
}

// RingSpecs converts a StackDef's ring definitions to rrd.RingSpec
// values, in the same coarsest-first order, with widths expressed in
// whole seconds (the unit this repository's rrd.Time uses throughout).
func (s StackDef) RingSpecs() []rrd.RingSpec {
	specs := make([]rrd.RingSpec, len(s.Rings))
	for i, r := range s.Rings {
		specs[i] = rrd.RingSpec{
			Name:     fmt.Sprintf("%s/%v", s.Name, r.Width.Duration),
			Width:    rrd.Time(r.Width.Duration / time.Second),
			Capacity: r.Capacity,
		}
	}
	return specs
}
