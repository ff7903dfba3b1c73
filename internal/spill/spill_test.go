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

package spill

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"corpusindex/internal/ingest"
)

func TestSpillWritesSortedPartialsAndClearsBuffers(t *testing.T) {
	dir := t.TempDir()
	helperDir := filepath.Join(dir, "helper_indexes")
	mainDir := filepath.Join(dir, "main_indexes")

	idx := ingest.New()
	idx.DocMap[1] = ingest.DocMeta{Path: "a.json", URL: "https://a"}
	idx.DocMap[2] = ingest.DocMeta{Path: "b.json", URL: "https://b"}
	idx.Postings["zebra"] = []ingest.Posting{{DocID: 1, Score: 2.1}}
	idx.Postings["apple"] = []ingest.Posting{{DocID: 2, Score: 2.2}}

	result, err := Spill(idx, helperDir, mainDir, 1)
	if err != nil {
		t.Fatalf("Spill() error = %v", err)
	}

	if len(idx.DocMap) != 0 || len(idx.Postings) != 0 {
		t.Fatalf("Spill() did not clear buffers: docMap=%v postings=%v", idx.DocMap, idx.Postings)
	}

	terms := readPostingTerms(t, result.PostingPartialPath)
	if !sort.StringsAreSorted(terms) {
		t.Errorf("posting partial is not sorted by term: %v", terms)
	}
	if len(terms) != 2 || terms[0] != "apple" || terms[1] != "zebra" {
		t.Errorf("posting partial terms = %v, want [apple zebra]", terms)
	}

	docCount := 0
	f, err := os.Open(result.DocPartialPath)
	if err != nil {
		t.Fatalf("open doc partial: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec ingest.DocPartialRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode doc partial line %q: %v", scanner.Text(), err)
		}
		docCount++
	}
	if docCount != 2 {
		t.Errorf("doc partial has %d records, want 2", docCount)
	}
}

func readPostingTerms(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open posting partial: %v", err)
	}
	defer f.Close()

	var terms []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec ingest.PostingPartialRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode posting partial line %q: %v", scanner.Text(), err)
		}
		terms = append(terms, rec.Term)
	}
	return terms
}
