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

// Package ingest implements C1 of the indexing pipeline: per-document
// weighted term-frequency extraction and scored-posting accumulation.
//
// The source program (original_source/indexer.py) tracks doc_id,
// doc_index, and search_index as process-wide globals. This package
// packages that same state as an Indexer value instead, so a pipeline
// can own one without global mutable state.
package ingest

import (
	"encoding/json"
	"fmt"
	"math"
)

// Envelope is the JSON shape of one archive member.
type Envelope struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Indexer accumulates an in-memory partial index across a batch of
// documents. It is not safe for concurrent use.
type Indexer struct {
	nextDocID int
	DocMap    map[int]DocMeta
	Postings  map[string][]Posting
}

// New returns an empty Indexer.
func New() *Indexer {
	return &Indexer{
		DocMap:   make(map[int]DocMeta),
		Postings: make(map[string][]Posting),
	}
}

// NextDocID reports the doc_id that would be assigned to the next
// ingested document.
func (idx *Indexer) NextDocID() int {
	return idx.nextDocID + 1
}

// DocCount reports the total number of documents assigned a doc_id so
// far in this run. The counter survives Reset, so it stays correct
// across spills.
func (idx *Indexer) DocCount() int {
	return idx.nextDocID
}

// IngestRaw decodes a JSON envelope, extracts its weighted term
// frequencies, and appends scored postings for every term found.
// A document that fails to decode or parse as HTML is skipped and
// does not consume a doc_id.
func (idx *Indexer) IngestRaw(name string, raw []byte) error {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("ingest: decode envelope %s: %w", name, err)
	}
	return idx.IngestDocument(name, env.URL, env.Content)
}

// IngestDocument assigns the next doc_id, records its metadata, and
// scores its weighted term frequencies into the in-memory posting
// lists. Score is 2 + log10(weighted_tf).
func (idx *Indexer) IngestDocument(name, url, htmlBody string) error {
	freqs, err := ExtractWeightedFrequencies(htmlBody)
	if err != nil {
		return fmt.Errorf("ingest: extract %s: %w", name, err)
	}

	idx.nextDocID++
	docID := idx.nextDocID
	idx.DocMap[docID] = DocMeta{Path: name, URL: url}

	for term, f := range freqs {
		if f <= 0 {
			continue
		}
		score := 2 + math.Log10(f)
		idx.Postings[term] = append(idx.Postings[term], Posting{DocID: docID, Score: score})
	}
	return nil
}

// ShouldSpill reports whether the pipeline should flush the in-memory
// index to disk. The cadence is every 5,000 documents.
func (idx *Indexer) ShouldSpill() bool {
	return idx.nextDocID > 0 && idx.nextDocID%5000 == 0
}

// Reset clears the in-memory doc map and posting lists after a spill,
// while leaving the doc_id counter monotone across the whole archive.
func (idx *Indexer) Reset() {
	idx.DocMap = make(map[int]DocMeta)
	idx.Postings = make(map[string][]Posting)
}
