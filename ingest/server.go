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
	"bufio"
	"context"
	"log"
	"net"
	"strings"
	"time"

	"github.com/ratboy666/crrd/registry"
	"github.com/ratboy666/crrd/rrd"
)

// Sink is the narrow interface ServeLine and ServePickle need from the
// stack registry: apply one decoded sample to whatever stack is
// registered under its name, serializing against any other caller
// reaching the same name. Sink implementations own that
// serialization; the listeners never touch a
// *rrd.Stack directly, since rrd.Ring/Stack do no locking of their own
// and a plaintext listener, a pickle listener, and an HTTP query
// handler may all be live against the same registry at once.
type Sink interface {
	Apply(sample Sample) (found bool)
}

// registrySink adapts a *registry.Registry of float64 stacks to Sink.
type registrySink struct {
	reg *registry.Registry
}

// NewSink wraps a registry of float64-payload stacks as a Sink.
func NewSink(reg *registry.Registry) Sink {
	return registrySink{reg: reg}
}

func (s registrySink) Apply(sample Sample) bool {
	found, err := registry.WithStack[float64](s.reg, sample.Name, func(stack *rrd.Stack[float64]) {
		stack.AddAt(sample.Value, sample.T)
	})
	if err != nil {
		log.Printf("ingest: %v", err)
		return false
	}
	return found
}

func apply(sink Sink, logger *log.Logger, samples []Sample) {
	for _, sample := range samples {
		if !sink.Apply(sample) {
			logger.Printf("ingest: no stack registered for %q, dropping sample", sample.Name)
		}
	}
}

// ServeLine accepts TCP connections on addr and feeds every decoded
// line-protocol sample into sink, until ctx is cancelled. Temporary
// Accept errors are retried with truncated exponential backoff, the
// same policy the originating plaintext listener used.
func ServeLine(ctx context.Context, addr string, sink Sink, logger *log.Logger) error {
	return serve(ctx, addr, logger, func(conn net.Conn) {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			sample, err := ParseLine(scanner.Text())
			if err != nil {
				logger.Printf("ingest: %v", err)
				continue
			}
			apply(sink, logger, []Sample{sample})
		}
	})
}

// ServePickle accepts TCP connections on addr and feeds every decoded
// pickle-frame batch into sink, until ctx is cancelled.
func ServePickle(ctx context.Context, addr string, sink Sink, logger *log.Logger) error {
	return serve(ctx, addr, logger, func(conn net.Conn) {
		for {
			frame, err := ReadPickleFrame(conn)
			if err != nil {
				return
			}
			samples, err := DecodePickle(frame)
			if err != nil {
				logger.Printf("ingest: %v", err)
				continue
			}
			apply(sink, logger, samples)
		}
	})
}

func serve(ctx context.Context, addr string, logger *log.Logger, handle func(net.Conn)) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	var tempDelay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				logger.Printf("ingest: accept error: %v; retrying in %v", err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			if strings.Contains(err.Error(), "use of closed") {
				return nil
			}
			return err
		}
		tempDelay = 0

		go func() {
			defer conn.Close()
			handle(conn)
		}()
	}
}
