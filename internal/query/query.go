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

// Package query implements C6: the online query evaluator. It loads
// the three artifacts written by the offline indexer (final posting
// file, term offset map, doc map), then for each query seeks directly
// to the byte offset of every surviving query term's posting line,
// applies idf-threshold stop-word pruning, and ranks documents by
// lnc.ltc cosine similarity.
//
// Ported from original_source/search.py in full.
package query

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"corpusindex/internal/docmap"
	"corpusindex/internal/finalize"
	"corpusindex/internal/ingest"
	"corpusindex/internal/stem"
)

// idfStopWordThreshold is log10(10/9): a term appearing in 90% or
// more of the corpus is treated as a stop-word.
const idfStopWordThreshold = 0.04575749056067513 // math.Log10(10.0 / 9.0)

// ErrCorrupted is returned when a seeked posting line's term does not
// match the term that was looked up.
var ErrCorrupted = errors.New("query: index corrupted, rebuild the index")

// Result is one ranked hit, resolved through the doc map.
type Result struct {
	DocID int
	Path  string
	URL   string
	Score float64
}

// SearchEngine holds the final artifacts loaded into memory, ready to
// answer queries by seeking into the final posting file.
type SearchEngine struct {
	postingPath string
	offsets     map[string]int64
	docs        map[string]ingest.DocMeta
}

// Artifacts names the three files a SearchEngine needs.
type Artifacts struct {
	FinalPostingPath string
	OffsetMapPath    string
	DocMapPath       string
}

// Load verifies all three artifacts exist, loads the offset map and
// doc map into memory, and returns a ready SearchEngine. It fails
// fast if any artifact is missing.
func Load(a Artifacts) (*SearchEngine, error) {
	for _, path := range []string{a.FinalPostingPath, a.OffsetMapPath, a.DocMapPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("query: missing index artifact %s (run the indexer first): %w", path, err)
		}
	}

	offsets, err := finalize.LoadOffsetMap(a.OffsetMapPath)
	if err != nil {
		return nil, err
	}
	docs, err := docmap.LoadFinal(a.DocMapPath)
	if err != nil {
		return nil, err
	}

	return &SearchEngine{
		postingPath: a.FinalPostingPath,
		offsets:     offsets,
		docs:        docs,
	}, nil
}

// DocCount reports the corpus size backing this engine: the final
// cardinality of the doc map.
func (e *SearchEngine) DocCount() int {
	return len(e.docs)
}

// Search tokenizes, stems, and deduplicates query, looks up each
// surviving stem's posting line, prunes stop-words by idf threshold,
// ranks the remaining documents by lnc.ltc cosine similarity, and
// returns up to the top 50 results resolved through the doc map.
func (e *SearchEngine) Search(query string) ([]Result, error) {
	stems := stem.TokenizeStemDedupe(query)
	if len(stems) == 0 {
		return nil, nil
	}

	terms := make([]string, 0, len(stems))
	tfMaps := make([]map[int]float64, 0, len(stems))
	idfs := make([]float64, 0, len(stems))

	f, err := os.Open(e.postingPath)
	if err != nil {
		return nil, fmt.Errorf("query: open final posting file: %w", err)
	}
	defer f.Close()

	for _, s := range stems {
		offset, ok := e.offsets[s]
		if !ok {
			// Absent stem contributes nothing rather than failing
			// the whole query over one out-of-vocabulary word.
			continue
		}

		rec, err := readRecordAt(f, offset)
		if err != nil {
			return nil, err
		}
		if rec.Term != s {
			return nil, ErrCorrupted
		}

		terms = append(terms, rec.Term)
		idfs = append(idfs, rec.IDF)
		tfMaps = append(tfMaps, postingsToMap(rec.Postings))
	}

	if len(terms) == 0 {
		return nil, nil
	}

	survivingTF, survivingIDF := pruneStopWords(tfMaps, idfs)
	scores := cosineScores(survivingTF, survivingIDF)

	return e.topResults(scores, 50), nil
}

func postingsToMap(postings []ingest.Posting) map[int]float64 {
	m := make(map[int]float64, len(postings))
	for _, p := range postings {
		m[p.DocID] = p.Score
	}
	return m
}

// pruneStopWords drops every term whose idf is below the stop-word
// threshold, unless doing so would remove every term, in which case
// the original set is restored unchanged.
func pruneStopWords(tfMaps []map[int]float64, idfs []float64) ([]map[int]float64, []float64) {
	var survivingTF []map[int]float64
	var survivingIDF []float64
	for i, idf := range idfs {
		if idf < idfStopWordThreshold {
			continue
		}
		survivingTF = append(survivingTF, tfMaps[i])
		survivingIDF = append(survivingIDF, idf)
	}
	if len(survivingIDF) == 0 {
		return tfMaps, idfs
	}
	return survivingTF, survivingIDF
}

// cosineScores computes the lnc.ltc cosine similarity for every
// document appearing in any surviving term's postings. With exactly
// one surviving term the formula degenerates, so this returns the raw
// stored tf instead, matching the source's single-term shortcut.
func cosineScores(tfMaps []map[int]float64, idfs []float64) map[int]float64 {
	scores := make(map[int]float64)
	switch len(tfMaps) {
	case 0:
		return scores
	case 1:
		for doc, tf := range tfMaps[0] {
			scores[doc] = tf
		}
		return scores
	}

	docs := make(map[int]bool)
	for _, tf := range tfMaps {
		for doc := range tf {
			docs[doc] = true
		}
	}

	idfNorm := norm(idfs)
	for doc := range docs {
		vec := make([]float64, len(tfMaps))
		for i, tf := range tfMaps {
			vec[i] = tf[doc]
		}
		tfNorm := norm(vec)
		if tfNorm == 0 || idfNorm == 0 {
			// The cosine is undefined for a zero vector (e.g. every
			// restored term has idf 0); keep the document with score 0.
			scores[doc] = 0
			continue
		}
		scores[doc] = dot(vec, idfs) / (tfNorm * idfNorm)
	}
	return scores
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func (e *SearchEngine) topResults(scores map[int]float64, limit int) []Result {
	results := make([]Result, 0, len(scores))
	for doc, score := range scores {
		meta, ok := e.docs[strconv.Itoa(doc)]
		if !ok {
			continue
		}
		results = append(results, Result{DocID: doc, Path: meta.Path, URL: meta.URL, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func readRecordAt(f *os.File, offset int64) (finalize.Record, error) {
	if _, err := f.Seek(offset, 0); err != nil {
		return finalize.Record{}, fmt.Errorf("query: seek to offset %d: %w", offset, err)
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return finalize.Record{}, fmt.Errorf("query: read at offset %d: %w", offset, err)
		}
		return finalize.Record{}, fmt.Errorf("query: no line at offset %d", offset)
	}
	var rec finalize.Record
	if err := rec.UnmarshalJSON(scanner.Bytes()); err != nil {
		return finalize.Record{}, fmt.Errorf("query: decode record at offset %d: %w", offset, err)
	}
	return rec, nil
}
