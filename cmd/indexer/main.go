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

// Command indexer builds an inverted index over a zip archive of
// {url, content} JSON documents.
package main

import (
	"flag"
	"log"

	"corpusindex/internal/pipeline"
)

var (
	archivePath = flag.String("archive", "", "path to the zip archive of JSON documents to index")
	helperDir   = flag.String("helper-dir", "helper_indexes", "directory for doc-map partials and the final doc map")
	mainDir     = flag.String("main-dir", "main_indexes", "directory for posting partials and the final search index")
)

func main() {
	flag.Parse()
	if *archivePath == "" {
		log.Fatal("indexer: -archive is required")
	}

	stats, err := pipeline.Run(*archivePath, *helperDir, *mainDir)
	if err != nil {
		log.Fatalf("indexer: %v", err)
	}

	log.Printf("indexed %d documents (%d skipped) across %d spills, wrote %d terms",
		stats.DocsIndexed, stats.DocsSkipped, stats.SpillCount, stats.TermsWritten)
}
