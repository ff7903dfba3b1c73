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

package query

import (
	"errors"
	"path/filepath"
	"testing"

	"corpusindex/internal/docmap"
	"corpusindex/internal/finalize"
	"corpusindex/internal/ingest"
)

type fixtureTerm struct {
	term     string
	postings []ingest.Posting
}

func buildEngine(t *testing.T, totalDocs int, terms []fixtureTerm, docs map[int]ingest.DocMeta) *SearchEngine {
	t.Helper()
	dir := t.TempDir()

	postingPath := filepath.Join(dir, "final_search_index.json")
	w, err := finalize.NewWriter(postingPath, totalDocs)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	for _, ft := range terms {
		if err := w.WriteTerm(ft.term, ft.postings); err != nil {
			t.Fatalf("WriteTerm(%q) error = %v", ft.term, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	offsetPath := filepath.Join(dir, "final_word_index.json")
	if err := finalize.WriteOffsetMap(w.Offsets, offsetPath); err != nil {
		t.Fatalf("WriteOffsetMap() error = %v", err)
	}

	docPath := filepath.Join(dir, "final_doc_index.json")
	if err := docmap.WriteFinal(docs, docPath); err != nil {
		t.Fatalf("WriteFinal() error = %v", err)
	}

	engine, err := Load(Artifacts{
		FinalPostingPath: postingPath,
		OffsetMapPath:    offsetPath,
		DocMapPath:       docPath,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return engine
}

func containsDoc(results []Result, docID int) bool {
	for _, r := range results {
		if r.DocID == docID {
			return true
		}
	}
	return false
}

// hello/world/there: D1 = "hello world", D2 = "hello hello there".
// hello has df=2 (idf=0, a stop-word); world and there each have df=1
// (idf = log10(2/1) ~= 0.301, above the pruning threshold).
func helloWorldThereEngine(t *testing.T) *SearchEngine {
	return buildEngine(t, 2, []fixtureTerm{
		{term: "hello", postings: []ingest.Posting{{DocID: 1, Score: 2.0}, {DocID: 2, Score: 2.301}}},
		{term: "world", postings: []ingest.Posting{{DocID: 1, Score: 2.0}}},
		{term: "there", postings: []ingest.Posting{{DocID: 2, Score: 2.0}}},
	}, map[int]ingest.DocMeta{
		1: {Path: "d1.html", URL: "http://example.com/d1"},
		2: {Path: "d2.html", URL: "http://example.com/d2"},
	})
}

func TestSearchStopWordFallbackRestoresSoleTerm(t *testing.T) {
	engine := helloWorldThereEngine(t)

	results, err := engine.Search("hello")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search(\"hello\") returned %d results, want 2 (fallback must restore the pruned stop-word)", len(results))
	}
	if !containsDoc(results, 1) || !containsDoc(results, 2) {
		t.Errorf("Search(\"hello\") results = %+v, want both doc 1 and doc 2", results)
	}
	// Single surviving term degenerates to raw stored tf, so D2's
	// higher stored score must rank it first.
	if results[0].DocID != 2 {
		t.Errorf("Search(\"hello\") top result = doc %d, want doc 2 (higher stored tf)", results[0].DocID)
	}
}

func TestSearchBothTermsSurvivePruning(t *testing.T) {
	engine := helloWorldThereEngine(t)

	results, err := engine.Search("world there")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search(\"world there\") returned %d results, want 2", len(results))
	}
	if !containsDoc(results, 1) || !containsDoc(results, 2) {
		t.Errorf("Search(\"world there\") results = %+v, want both doc 1 and doc 2", results)
	}
}

func TestSearchSingleSurvivingTermUsesRawTF(t *testing.T) {
	engine := helloWorldThereEngine(t)

	results, err := engine.Search("world")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search(\"world\") returned %d results, want 1", len(results))
	}
	if results[0].DocID != 1 || results[0].Score != 2.0 {
		t.Errorf("Search(\"world\") = %+v, want doc 1 with raw tf score 2.0", results[0])
	}
}

// Single-document archive, title "Alpha Beta", body "beta beta gamma".
func TestSearchSingleDocumentArchive(t *testing.T) {
	engine := buildEngine(t, 1, []fixtureTerm{
		{term: "alpha", postings: []ingest.Posting{{DocID: 1, Score: 1.602}}},
		{term: "beta", postings: []ingest.Posting{{DocID: 1, Score: 1.778}}},
		{term: "gamma", postings: []ingest.Posting{{DocID: 1, Score: 1.0}}},
	}, map[int]ingest.DocMeta{
		1: {Path: "only.html", URL: "http://example.com/only"},
	})

	results, err := engine.Search("alpha beta")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].DocID != 1 {
		t.Fatalf("Search(\"alpha beta\") = %+v, want single result for doc 1", results)
	}
	if results[0].Path != "only.html" || results[0].URL != "http://example.com/only" {
		t.Errorf("Search(\"alpha beta\") doc meta = %+v, want resolved path/url", results[0])
	}
}

func TestSearchUnknownStemContributesNothing(t *testing.T) {
	engine := helloWorldThereEngine(t)

	results, err := engine.Search("xyzzy")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search(\"xyzzy\") = %+v, want no results for an out-of-vocabulary term", results)
	}
}

func TestSearchEmptyQueryReturnsNoResults(t *testing.T) {
	engine := helloWorldThereEngine(t)

	results, err := engine.Search("   ")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search(\"\") = %+v, want empty result", results)
	}
}

func TestSearchDetectsCorruptedOffset(t *testing.T) {
	engine := helloWorldThereEngine(t)
	// Point "world"'s offset at the line for "hello" instead.
	engine.offsets["world"] = engine.offsets["hello"]

	_, err := engine.Search("world")
	if !errors.Is(err, ErrCorrupted) {
		t.Fatalf("Search() error = %v, want ErrCorrupted", err)
	}
}

func TestLoadFailsFastOnMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(Artifacts{
		FinalPostingPath: filepath.Join(dir, "missing_posting.json"),
		OffsetMapPath:    filepath.Join(dir, "missing_offsets.json"),
		DocMapPath:       filepath.Join(dir, "missing_docmap.json"),
	})
	if err == nil {
		t.Fatal("Load() error = nil, want an error for missing artifacts")
	}
}
