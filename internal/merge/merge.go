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

// Package merge implements C4: a k-way external merge of the sorted
// posting-partial run files written by internal/spill, producing one
// (term, merged_postings) emission per distinct term in ascending
// term order.
//
// Ported from original_source/indexer.py's next_word/finalize_search_index,
// which drives a Python heapq over [term, postings, source_index]
// tuples read one line at a time from each open partial file. Here the
// priority queue is github.com/emirpasic/gods/trees/binaryheap, already
// an indirect dependency of the teacher repo via go-git.
package merge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/emirpasic/gods/trees/binaryheap"

	"corpusindex/internal/ingest"
)

func decodeRecord(line []byte, rec *ingest.PostingPartialRecord) error {
	return json.Unmarshal(line, rec)
}

type heapItem struct {
	Term     string
	Postings []ingest.Posting
	Source   int
}

func compareItems(a, b any) int {
	ia, ib := a.(heapItem), b.(heapItem)
	if ia.Term != ib.Term {
		if ia.Term < ib.Term {
			return -1
		}
		return 1
	}
	if ia.Source < ib.Source {
		return -1
	}
	if ia.Source > ib.Source {
		return 1
	}
	return 0
}

// Emit is called once per distinct term, in ascending lexicographic
// order, with every posting merged in from every partial that
// contained it.
type Emit func(term string, postings []ingest.Posting) error

// Merge k-way merges partialFiles, which must each already be sorted
// ascending by term, and calls emit once per term found across all of
// them. All partial files are opened before the merge begins and are
// guaranteed closed on every exit path.
func Merge(partialFiles []string, emit Emit) error {
	sources := make([]*bufio.Scanner, len(partialFiles))
	closers := make([]*os.File, 0, len(partialFiles))
	defer func() {
		for _, f := range closers {
			f.Close()
		}
	}()

	for i, path := range partialFiles {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("merge: open partial %s: %w", path, err)
		}
		closers = append(closers, f)
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		sources[i] = scanner
	}

	heap := binaryheap.NewWith(compareItems)

	readNext := func(source int) (heapItem, bool, error) {
		scanner := sources[source]
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec ingest.PostingPartialRecord
			if err := decodeRecord(line, &rec); err != nil {
				return heapItem{}, false, fmt.Errorf("merge: decode %s: %w", partialFiles[source], err)
			}
			return heapItem{Term: rec.Term, Postings: rec.Postings, Source: source}, true, nil
		}
		if err := scanner.Err(); err != nil {
			return heapItem{}, false, fmt.Errorf("merge: scan %s: %w", partialFiles[source], err)
		}
		return heapItem{}, false, nil
	}

	for i := range sources {
		item, ok, err := readNext(i)
		if err != nil {
			return err
		}
		if ok {
			heap.Push(item)
		}
	}

	for {
		top, ok := heap.Pop()
		if !ok {
			break
		}
		current := top.(heapItem)
		term := current.Term
		merged := append([]ingest.Posting(nil), current.Postings...)

		next, ok, err := readNext(current.Source)
		if err != nil {
			return err
		}
		if ok {
			heap.Push(next)
		}

		for {
			peeked, ok := heap.Peek()
			if !ok {
				break
			}
			if peeked.(heapItem).Term != term {
				break
			}
			item, _ := heap.Pop()
			same := item.(heapItem)
			merged = append(merged, same.Postings...)

			nextSame, ok, err := readNext(same.Source)
			if err != nil {
				return err
			}
			if ok {
				heap.Push(nextSame)
			}
		}

		if err := emit(term, merged); err != nil {
			return err
		}
	}
	return nil
}
