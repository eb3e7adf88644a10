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

// crrdd is a small daemon that accepts timestamped samples over the
// plaintext and pickle line protocols, retains them in named
// round-robin stacks, and answers point-in-time queries over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ratboy666/crrd/config"
	"github.com/ratboy666/crrd/ingest"
	"github.com/ratboy666/crrd/policy"
	"github.com/ratboy666/crrd/registry"
	"github.com/ratboy666/crrd/rrd"
	"github.com/ratboy666/crrd/selfmon"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "c", "./etc/crrd.conf", "path to config file")
	flag.Parse()

	logger := log.New(os.Stderr, fmt.Sprintf("[%d] ", os.Getpid()), log.LstdFlags)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("crrdd: %v", err)
	}

	reg, err := registry.New(cfg.RegistryCapacity)
	if err != nil {
		logger.Fatalf("crrdd: %v", err)
	}
	defer reg.Close()

	for _, def := range cfg.Stacks {
		if err := buildStack(reg, def); err != nil {
			logger.Fatalf("crrdd: %v", err)
		}
		logger.Printf("crrdd: built stack %q with %d rings", def.Name, len(def.Rings))
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Printf("crrdd: shutting down")
		cancel()
	}()

	sink := ingest.NewSink(reg)

	if cfg.GraphiteTextListenSpec != "" {
		go func() {
			if err := ingest.ServeLine(ctx, cfg.GraphiteTextListenSpec, sink, logger); err != nil {
				logger.Printf("crrdd: line listener: %v", err)
			}
		}()
		logger.Printf("crrdd: plaintext listener on %s", cfg.GraphiteTextListenSpec)
	}

	if cfg.GraphitePickleListenSpec != "" {
		go func() {
			if err := ingest.ServePickle(ctx, cfg.GraphitePickleListenSpec, sink, logger); err != nil {
				logger.Printf("crrdd: pickle listener: %v", err)
			}
		}()
		logger.Printf("crrdd: pickle listener on %s", cfg.GraphitePickleListenSpec)
	}

	// Kept out of reg: Run below is their only writer and must never
	// see one evicted out from under it mid-tick.
	selfmonStacks, err := selfmon.NewStacks([]rrd.RingSpec{
		{Name: "day", Width: 3600, Capacity: 24},
		{Name: "hour", Width: 60, Capacity: 60},
	})
	if err != nil {
		logger.Fatalf("crrdd: %v", err)
	}
	defer selfmonStacks.Destroy()
	interval := cfg.SelfmonInterval.Duration
	if interval == 0 {
		interval = 5 * time.Second
	}
	go selfmon.Run(ctx, selfmonStacks, interval, func() rrd.Time { return rrd.Time(time.Now().Unix()) })

	if cfg.HTTPListenSpec != "" {
		srv := &http.Server{Addr: cfg.HTTPListenSpec, Handler: queryHandler(reg, selfmonStacks, logger)}
		go func() {
			logger.Printf("crrdd: http listener on %s", cfg.HTTPListenSpec)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("crrdd: http listener: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}

	<-ctx.Done()
}

func buildStack(reg *registry.Registry, def config.StackDef) error {
	var (
		update rrd.UpdateFunc[float64]
		zero   rrd.ZeroFunc[float64]
	)
	switch strings.ToLower(def.Policy) {
	case "mean":
		widest := def.Rings[0].Width.Duration
		update, zero = policy.RunningMean[float64](float64(widest.Seconds()))
	case "keep-first":
		update, zero = policy.KeepFirst[float64]()
	case "keep-last":
		update, zero = policy.KeepLast[float64]()
	default:
		// config.Validate already rejects "envelope" and anything
		// else unknown; this only fires if that check is bypassed.
		return fmt.Errorf("crrdd: stack %q: unknown policy %q", def.Name, def.Policy)
	}

	stack, err := rrd.NewStack[float64](def.Name, def.RingSpecs(), nil, update, zero)
	if err != nil {
		return err
	}
	registry.Register(reg, def.Name, stack)
	return nil
}

func queryHandler(reg *registry.Registry, selfmonStacks *selfmon.Stacks, logger *log.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("stack")
		tStr := r.URL.Query().Get("t")
		t, err := strconv.ParseInt(tStr, 10, 64)
		if name == "" || err != nil {
			http.Error(w, "usage: /query?stack=<name>&t=<unix-seconds>", http.StatusBadRequest)
			return
		}

		var (
			value *float64
			width rrd.Time
			ok    bool
		)
		switch name {
		case "crrd.cpu":
			value, width, ok = selfmonStacks.QueryCPU(rrd.Time(t))
		case "crrd.mem":
			value, width, ok = selfmonStacks.QueryMem(rrd.Time(t))
		default:
			var found bool
			found, err = registry.WithStack[float64](reg, name, func(stack *rrd.Stack[float64]) {
				value, width, ok = stack.Query(rrd.Time(t))
			})
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if !found {
				http.Error(w, fmt.Sprintf("no such stack %q", name), http.StatusNotFound)
				return
			}
		}

		if !ok {
			http.Error(w, "no data covers that instant", http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, "%v\t%d\n", *value, width)
	})
	return mux
}
