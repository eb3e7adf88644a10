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

// crrdblast generates a synthetic, rate-limited stream of samples
// against a running crrdd's plaintext line listener, for load testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net"
	"time"

	"golang.org/x/time/rate"
)

func sinTime(t time.Time, span time.Duration) float64 {
	seconds := span.Nanoseconds() / 1e9
	x := 2 * math.Pi / float64(seconds) * float64(t.Unix()%seconds)
	return math.Sin(x)
}

func main() {
	var (
		addr     string
		ratePS   int
		nSeries  int
		prefix   string
		span     time.Duration
		statsInt time.Duration
	)

	flag.StringVar(&addr, "addr", "127.0.0.1:2003", "host:port of the crrdd plaintext listener")
	flag.IntVar(&ratePS, "rate", 100, "samples per second to send")
	flag.IntVar(&nSeries, "series", 1000, "number of distinct series names to cycle through")
	flag.StringVar(&prefix, "prefix", "crrd.blast", "prefix for generated series names")
	flag.DurationVar(&span, "span", 600*time.Second, "period of the synthetic sinusoid")
	flag.DurationVar(&statsInt, "stats-interval", 10*time.Second, "how often to report throughput")
	flag.Parse()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Fatalf("crrdblast: dialing %s: %v", addr, err)
	}
	defer conn.Close()

	limiter := rate.NewLimiter(rate.Limit(ratePS), 1)
	ctx := context.Background()

	cnt, bytes := 0, 0
	lastStat := time.Now()

	for {
		if err := limiter.Wait(ctx); err != nil {
			log.Fatalf("crrdblast: %v", err)
		}

		n := rand.Intn(nSeries)
		now := time.Now()
		offset := time.Duration(n*10) * time.Second
		y := sinTime(now.Add(offset), span) * 100
		name := fmt.Sprintf("%s.a%02d.b%02d.c%02d.d%02d", prefix, (n%10000000)/100000, (n%100000)/1000, (n%1000)/10, n%10)

		line := fmt.Sprintf("%s %v %d\n", name, y, now.Unix())
		if _, err := fmt.Fprint(conn, line); err != nil {
			log.Fatalf("crrdblast: writing sample: %v", err)
		}
		cnt++
		bytes += len(line)

		if elapsed := time.Since(lastStat); elapsed > statsInt {
			log.Printf("crrdblast: %d samples, %.1f/sec, %d bytes/sec", cnt, float64(cnt)/elapsed.Seconds(), int64(float64(bytes)/elapsed.Seconds()))
			cnt, bytes = 0, 0
			lastStat = time.Now()
		}
	}
}
