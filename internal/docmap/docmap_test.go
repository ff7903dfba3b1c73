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

package docmap

import (
	"path/filepath"
	"testing"

	"corpusindex/internal/ingest"
	"corpusindex/internal/spill"
)

func TestFinalizeCombinesPartialsAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	helperDir := filepath.Join(dir, "helper_indexes")
	mainDir := filepath.Join(dir, "main_indexes")

	idx := ingest.New()
	idx.DocMap[1] = ingest.DocMeta{Path: "a.json", URL: "https://a"}
	idx.DocMap[2] = ingest.DocMeta{Path: "b.json", URL: "https://b"}
	if _, err := spill.Spill(idx, helperDir, mainDir, 1); err != nil {
		t.Fatalf("Spill() error = %v", err)
	}

	idx.DocMap[3] = ingest.DocMeta{Path: "c.json", URL: "https://c"}
	if _, err := spill.Spill(idx, helperDir, mainDir, 2); err != nil {
		t.Fatalf("Spill() error = %v", err)
	}

	combined, err := Finalize(helperDir)
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if len(combined) != 3 {
		t.Fatalf("Finalize() returned %d docs, want 3: %v", len(combined), combined)
	}

	outPath := filepath.Join(dir, "final_doc_index.json")
	if err := WriteFinal(combined, outPath); err != nil {
		t.Fatalf("WriteFinal() error = %v", err)
	}

	loaded, err := LoadFinal(outPath)
	if err != nil {
		t.Fatalf("LoadFinal() error = %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("LoadFinal() returned %d docs, want 3", len(loaded))
	}
	if loaded["2"].URL != "https://b" {
		t.Errorf("loaded[2].URL = %q, want https://b", loaded["2"].URL)
	}
}
