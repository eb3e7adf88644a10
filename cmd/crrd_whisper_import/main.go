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

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ratboy666/crrd/whimport"
)

func main() {
	var (
		whisperDir string
		include    string
		exclude    string
		skipErrors bool
	)

	flag.StringVar(&whisperDir, "whisperDir", "/opt/graphite/storage/whisper/", "location where all whisper files are stored")
	flag.StringVar(&include, "include", "", "only process whisper files whose path contains this string")
	flag.StringVar(&exclude, "exclude", "", "don't process whisper files whose path contains this string")
	flag.BoolVar(&skipErrors, "skipWhisperErrors", false, "when a whisper read fails, skip to the next file instead of aborting")
	flag.Parse()

	imported, failed := 0, 0
	err := filepath.Walk(whisperDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !strings.HasSuffix(path, ".wsp") {
			return nil
		}
		if exclude != "" && strings.Contains(path, exclude) {
			return nil
		}
		if include != "" && !strings.Contains(path, include) {
			return nil
		}

		stack, err := whimport.Import(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "crrd_whisper_import: %v\n", err)
			failed++
			if !skipErrors {
				return err
			}
			return nil
		}
		defer stack.Destroy()

		fmt.Printf("%s: imported %d rings\n", path, len(stack.Rings()))
		imported++
		return nil
	})

	fmt.Printf("crrd_whisper_import: %d imported, %d failed\n", imported, failed)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
