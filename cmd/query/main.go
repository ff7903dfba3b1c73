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

// Command query answers free-text searches against an index built by
// cmd/indexer, either as a single one-shot query or interactively over
// stdin when no query is given.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"corpusindex/internal/query"
)

var (
	helperDir = flag.String("helper-dir", "helper_indexes", "directory containing the final doc map")
	mainDir   = flag.String("main-dir", "main_indexes", "directory containing the final search index and offset map")
	queryText = flag.String("query", "", "query text; if empty, reads queries interactively from stdin")
)

func main() {
	flag.Parse()

	engine, err := query.Load(query.Artifacts{
		FinalPostingPath: filepath.Join(*mainDir, "final_search_index.json"),
		OffsetMapPath:    filepath.Join(*mainDir, "final_word_index.json"),
		DocMapPath:       filepath.Join(*helperDir, "final_doc_index.json"),
	})
	if err != nil {
		log.Fatalf("query: %v", err)
	}
	log.Printf("loaded index over %d documents", engine.DocCount())

	if *queryText != "" {
		runQuery(engine, *queryText)
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		runQuery(engine, scanner.Text())
		fmt.Print("> ")
	}
}

func runQuery(engine *query.SearchEngine, text string) {
	results, err := engine.Search(text)
	if errors.Is(err, query.ErrCorrupted) {
		log.Fatalf("query: %v", err)
	}
	if err != nil {
		log.Printf("query: %v", err)
		return
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return
	}
	for i, r := range results {
		fmt.Printf("%2d. %.4f  %s  %s\n", i+1, r.Score, r.Path, r.URL)
	}
}
