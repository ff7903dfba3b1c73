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

// Package finalize implements C5: for each merged term, compute idf
// from the untruncated posting count, truncate to the 250 highest
// scores, write one line to the final posting file, and record the
// line's starting byte offset.
//
// Ported from original_source/indexer.py's finalize_search_index.
package finalize

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"corpusindex/internal/ingest"
)

// MaxPostingsPerTerm is the truncation cap applied to every term's
// merged posting list before it is written to the final index.
const MaxPostingsPerTerm = 250

// Record is one line of the final posting file: [term, postings, idf].
type Record struct {
	Term     string
	Postings []ingest.Posting
	IDF      float64
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{r.Term, r.Postings, r.IDF})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw [3]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("finalize: decode record: %w", err)
	}
	if err := json.Unmarshal(raw[0], &r.Term); err != nil {
		return fmt.Errorf("finalize: decode record term: %w", err)
	}
	if err := json.Unmarshal(raw[1], &r.Postings); err != nil {
		return fmt.Errorf("finalize: decode record postings: %w", err)
	}
	if err := json.Unmarshal(raw[2], &r.IDF); err != nil {
		return fmt.Errorf("finalize: decode record idf: %w", err)
	}
	return nil
}

// Writer accumulates final posting-file lines and their offsets.
type Writer struct {
	file      *os.File
	buf       *bufio.Writer
	offset    int64
	totalDocs int
	Offsets   map[string]int64
}

// NewWriter opens outPath and prepares to write the final posting file.
// totalDocs is N in the idf formula log10(N/df).
func NewWriter(outPath string, totalDocs int) (*Writer, error) {
	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("finalize: create final posting file: %w", err)
	}
	return &Writer{
		file:      f,
		buf:       bufio.NewWriter(f),
		totalDocs: totalDocs,
		Offsets:   make(map[string]int64),
	}, nil
}

// WriteTerm writes one merged term's postings, truncated to the top
// MaxPostingsPerTerm by score (ties broken by first occurrence), with
// idf computed from the full, untruncated posting count. If postings
// is empty, the term is skipped; this should be unreachable for a
// term that survived the merge.
func (w *Writer) WriteTerm(term string, postings []ingest.Posting) error {
	df := len(postings)
	if df == 0 {
		return nil
	}

	idf := math.Log10(float64(w.totalDocs) / float64(df))
	truncated := truncateTopScores(postings, MaxPostingsPerTerm)

	rec := Record{Term: term, Postings: truncated, IDF: idf}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("finalize: marshal record for %q: %w", term, err)
	}

	w.Offsets[term] = w.offset
	line := append(data, '\n')
	n, err := w.buf.Write(line)
	if err != nil {
		return fmt.Errorf("finalize: write record for %q: %w", term, err)
	}
	w.offset += int64(n)
	return nil
}

// Close flushes and closes the final posting file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("finalize: flush final posting file: %w", err)
	}
	return w.file.Close()
}

// truncateTopScores returns the n postings with the highest score,
// breaking ties by first occurrence (a stable sort on descending
// score preserves input order among equal scores).
func truncateTopScores(postings []ingest.Posting, n int) []ingest.Posting {
	ordered := append([]ingest.Posting(nil), postings...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})
	if len(ordered) > n {
		ordered = ordered[:n]
	}
	return ordered
}

// WriteOffsetMap serializes the term->offset map built up across
// WriteTerm calls.
func WriteOffsetMap(offsets map[string]int64, outPath string) error {
	data, err := json.MarshalIndent(offsets, "", "    ")
	if err != nil {
		return fmt.Errorf("finalize: marshal offset map: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("finalize: write offset map: %w", err)
	}
	return nil
}

// LoadOffsetMap reads back an offset map written by WriteOffsetMap.
func LoadOffsetMap(path string) (map[string]int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("finalize: read offset map: %w", err)
	}
	var offsets map[string]int64
	if err := json.Unmarshal(data, &offsets); err != nil {
		return nil, fmt.Errorf("finalize: decode offset map: %w", err)
	}
	return offsets, nil
}
