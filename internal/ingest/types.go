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

package ingest

import (
	"encoding/json"
	"fmt"
)

// Posting is a (doc_id, score) pair, the unit of an inverted-index
// posting list. It marshals as a two-element JSON array.
type Posting struct {
	DocID int
	Score float64
}

func (p Posting) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(p.DocID), p.Score})
}

func (p *Posting) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("ingest: decode posting: %w", err)
	}
	p.DocID = int(pair[0])
	p.Score = pair[1]
	return nil
}

// DocMeta is the archive-relative path and URL of one document. It
// marshals as a two-element JSON array ([path, url]).
type DocMeta struct {
	Path string
	URL  string
}

func (m DocMeta) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{m.Path, m.URL})
}

func (m *DocMeta) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("ingest: decode doc meta: %w", err)
	}
	m.Path = pair[0]
	m.URL = pair[1]
	return nil
}

// DocPartialRecord is one line of a doc-map partial file: [doc_id, [path, url]].
type DocPartialRecord struct {
	DocID int
	Meta  DocMeta
}

func (r DocPartialRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{r.DocID, r.Meta})
}

func (r *DocPartialRecord) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ingest: decode doc partial record: %w", err)
	}
	if err := json.Unmarshal(raw[0], &r.DocID); err != nil {
		return fmt.Errorf("ingest: decode doc partial record id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &r.Meta); err != nil {
		return fmt.Errorf("ingest: decode doc partial record meta: %w", err)
	}
	return nil
}

// PostingPartialRecord is one line of a posting-partial file:
// [term, [[doc_id, score], ...]].
type PostingPartialRecord struct {
	Term     string
	Postings []Posting
}

func (r PostingPartialRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{r.Term, r.Postings})
}

func (r *PostingPartialRecord) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ingest: decode posting partial record: %w", err)
	}
	if err := json.Unmarshal(raw[0], &r.Term); err != nil {
		return fmt.Errorf("ingest: decode posting partial record term: %w", err)
	}
	if err := json.Unmarshal(raw[1], &r.Postings); err != nil {
		return fmt.Errorf("ingest: decode posting partial record postings: %w", err)
	}
	return nil
}
