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

// Package docmap implements C3: combining every doc-map partial file
// written during ingest into one canonical doc_id -> metadata map.
//
// Ported from original_source/indexer.py's finalize_doc_index.
package docmap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"corpusindex/internal/ingest"
)

const docPartialSuffix = "_doc_index.json"

// Finalize reads every doc-map partial in helperDir and overlays them
// into one map keyed by doc_id. Doc ids are unique across partials,
// so overlay order does not matter.
func Finalize(helperDir string) (map[int]ingest.DocMeta, error) {
	entries, err := os.ReadDir(helperDir)
	if err != nil {
		return nil, fmt.Errorf("docmap: read helper dir: %w", err)
	}

	combined := make(map[int]ingest.DocMeta)
	for _, entry := range entries {
		if entry.IsDir() || len(entry.Name()) <= len(docPartialSuffix) {
			continue
		}
		if entry.Name()[len(entry.Name())-len(docPartialSuffix):] != docPartialSuffix {
			continue
		}
		if err := mergePartial(filepath.Join(helperDir, entry.Name()), combined); err != nil {
			return nil, err
		}
	}
	return combined, nil
}

func mergePartial(path string, combined map[int]ingest.DocMeta) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("docmap: open partial %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec ingest.DocPartialRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return fmt.Errorf("docmap: decode record in %s: %w", path, err)
		}
		combined[rec.DocID] = rec.Meta
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("docmap: scan %s: %w", path, err)
	}
	return nil
}

// WriteFinal serializes combined as the final doc map artifact: a JSON
// object mapping decimal-string doc_id to [path, url].
func WriteFinal(combined map[int]ingest.DocMeta, outPath string) error {
	out := make(map[string]ingest.DocMeta, len(combined))
	for docID, meta := range combined {
		out[strconv.Itoa(docID)] = meta
	}

	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Errorf("docmap: marshal final doc map: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("docmap: write final doc map: %w", err)
	}
	return nil
}

// LoadFinal reads back a final doc map artifact written by WriteFinal.
func LoadFinal(path string) (map[string]ingest.DocMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("docmap: read final doc map: %w", err)
	}
	var out map[string]ingest.DocMeta
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("docmap: decode final doc map: %w", err)
	}
	return out, nil
}
