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

// Package pipeline orchestrates the whole offline indexing run: C1
// ingest over every archive member, C2 periodic spilling, C3 doc-map
// finalization, C4 k-way merge, and C5 final index writing.
package pipeline

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"corpusindex/internal/docmap"
	"corpusindex/internal/finalize"
	"corpusindex/internal/ingest"
	"corpusindex/internal/merge"
	"corpusindex/internal/spill"
)

const (
	finalPostingFile = "final_search_index.json"
	finalOffsetFile  = "final_word_index.json"
	finalDocMapFile  = "final_doc_index.json"
)

// Stats summarizes one indexing run for the caller to log.
type Stats struct {
	DocsIndexed  int
	DocsSkipped  int
	SpillCount   int
	TermsWritten int
}

// Run drives the full pipeline over the archive at archivePath. Doc-map
// partials and the final doc map are written under helperDir; posting
// partials, the final posting file and the term offset map are written
// under mainDir.
func Run(archivePath, helperDir, mainDir string) (Stats, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return Stats{}, fmt.Errorf("pipeline: open archive %s: %w", archivePath, err)
	}
	defer zr.Close()

	idx := ingest.New()
	var stats Stats

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".json") {
			continue
		}
		if err := ingestEntry(idx, f); err != nil {
			log.Printf("pipeline: skipping %s: %v", f.Name, err)
			stats.DocsSkipped++
			continue
		}
		stats.DocsIndexed++

		if idx.ShouldSpill() {
			if _, err := spill.Spill(idx, helperDir, mainDir, stats.SpillCount); err != nil {
				return stats, fmt.Errorf("pipeline: spill: %w", err)
			}
			stats.SpillCount++
		}
	}

	if len(idx.DocMap) > 0 {
		if _, err := spill.Spill(idx, helperDir, mainDir, stats.SpillCount); err != nil {
			return stats, fmt.Errorf("pipeline: final spill: %w", err)
		}
		stats.SpillCount++
	}

	combined, err := docmap.Finalize(helperDir)
	if err != nil {
		return stats, fmt.Errorf("pipeline: finalize doc map: %w", err)
	}
	if err := docmap.WriteFinal(combined, filepath.Join(helperDir, finalDocMapFile)); err != nil {
		return stats, fmt.Errorf("pipeline: write final doc map: %w", err)
	}

	partials, err := filepath.Glob(filepath.Join(mainDir, "*_search_index.json"))
	if err != nil {
		return stats, fmt.Errorf("pipeline: list posting partials: %w", err)
	}

	writer, err := finalize.NewWriter(filepath.Join(mainDir, finalPostingFile), len(combined))
	if err != nil {
		return stats, fmt.Errorf("pipeline: open final index writer: %w", err)
	}

	mergeErr := merge.Merge(partials, func(term string, postings []ingest.Posting) error {
		if err := writer.WriteTerm(term, postings); err != nil {
			return err
		}
		stats.TermsWritten++
		return nil
	})
	if closeErr := writer.Close(); closeErr != nil && mergeErr == nil {
		mergeErr = closeErr
	}
	if mergeErr != nil {
		return stats, fmt.Errorf("pipeline: merge and write final index: %w", mergeErr)
	}

	if err := finalize.WriteOffsetMap(writer.Offsets, filepath.Join(mainDir, finalOffsetFile)); err != nil {
		return stats, fmt.Errorf("pipeline: write offset map: %w", err)
	}

	return stats, nil
}

func ingestEntry(idx *ingest.Indexer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive member: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read archive member: %w", err)
	}
	return idx.IngestRaw(f.Name, raw)
}
