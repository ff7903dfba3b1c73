// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command fetch builds a corpus archive suitable for cmd/indexer by
// crawling webpages, unpacking a git/zip source tree, or packing an
// already-fetched directory of documents.
package main

import (
	"fmt"
	"log"
	"os"

	"corpusindex/internal/corpus"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "web":
		if len(os.Args) < 4 {
			log.Fatal("usage: fetch web <seed-url> <out-dir>")
		}
		sources := []corpus.Source{{Name: "cli", URLs: []string{os.Args[2]}}}
		if err := corpus.FetchWebpages(sources, os.Args[3]); err != nil {
			log.Fatalf("fetch: %v", err)
		}
	case "git":
		if len(os.Args) < 4 {
			log.Fatal("usage: fetch git <repo-url-or-zip-url> <out-dir>")
		}
		if err := corpus.FetchGitArchive(os.Args[2], os.Args[3]); err != nil {
			log.Fatalf("fetch: %v", err)
		}
	case "pack":
		if len(os.Args) < 4 {
			log.Fatal("usage: fetch pack <src-dir> <archive.zip>")
		}
		if err := corpus.PackArchive(os.Args[2], os.Args[3]); err != nil {
			log.Fatalf("fetch: %v", err)
		}
	default:
		fmt.Printf("unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: fetch <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  web <seed-url> <out-dir>           crawl a webpage and the links under its URL")
	fmt.Println("  git <repo-or-zip-url> <out-dir>    clone a git repo or download+unzip a zip archive")
	fmt.Println("  pack <src-dir> <archive.zip>        pack a directory of *.json documents into an archive")
}
