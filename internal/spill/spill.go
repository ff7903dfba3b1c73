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

// Package spill implements C2: periodically flushing an in-memory
// partial index to two sorted-by-term run files on disk, so the
// indexer never has to hold the whole corpus's postings in RAM.
//
// Ported from original_source/indexer.py's indexes_to_disk, which
// keys partial files by wall-clock time; here the caller supplies a
// monotone sequence number instead, which keeps spills naturally
// orderable without depending on the system clock.
package spill

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"corpusindex/internal/ingest"
)

// Result names the two files written by one spill.
type Result struct {
	DocPartialPath     string
	PostingPartialPath string
}

// Spill writes idx's current doc map and posting lists to helperDir
// and mainDir respectively, then clears idx's in-memory buffers.
// seq should be a strictly increasing counter across the life of one
// indexing run, used to name the files in spill order.
func Spill(idx *ingest.Indexer, helperDir, mainDir string, seq int) (Result, error) {
	if err := os.MkdirAll(helperDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("spill: create helper dir: %w", err)
	}
	if err := os.MkdirAll(mainDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("spill: create main dir: %w", err)
	}

	docPath := filepath.Join(helperDir, fmt.Sprintf("%08d_doc_index.json", seq))
	if err := writeDocPartial(idx, docPath); err != nil {
		return Result{}, err
	}

	postingPath := filepath.Join(mainDir, fmt.Sprintf("%08d_search_index.json", seq))
	if err := writePostingPartial(idx, postingPath); err != nil {
		return Result{}, err
	}

	idx.Reset()
	return Result{DocPartialPath: docPath, PostingPartialPath: postingPath}, nil
}

func writeDocPartial(idx *ingest.Indexer, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("spill: create doc partial: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for docID, meta := range idx.DocMap {
		rec := ingest.DocPartialRecord{DocID: docID, Meta: meta}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("spill: encode doc partial record: %w", err)
		}
	}
	return w.Flush()
}

func writePostingPartial(idx *ingest.Indexer, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("spill: create posting partial: %w", err)
	}
	defer f.Close()

	terms := make([]string, 0, len(idx.Postings))
	for term := range idx.Postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, term := range terms {
		rec := ingest.PostingPartialRecord{Term: term, Postings: idx.Postings[term]}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("spill: encode posting partial record: %w", err)
		}
	}
	return w.Flush()
}
