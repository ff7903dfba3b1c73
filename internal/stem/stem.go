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

// Package stem implements the tokenization and stemming rules shared by
// the ingest and query paths. Both sides must agree on this exactly, or
// the offset map built by the indexer will never match a query's lookup.
package stem

import (
	"regexp"
	"strings"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9@#*&']{2,}`)

// Tokenize splits text into candidate terms using the same regex the
// indexer and the query path both rely on for determinism.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// Stem lower-cases and Porter-stems a single token.
func Stem(token string) string {
	return porterstemmer.StemString(strings.ToLower(token))
}

// TokenizeAndStem tokenizes then stems every token, preserving order
// and duplicates.
func TokenizeAndStem(text string) []string {
	tokens := Tokenize(text)
	stems := make([]string, len(tokens))
	for i, tok := range tokens {
		stems[i] = Stem(tok)
	}
	return stems
}

// TokenizeStemDedupe tokenizes, stems, and removes duplicate stems,
// keeping first-occurrence order. Used for query terms, where
// multiplicity does not boost scoring.
func TokenizeStemDedupe(text string) []string {
	stems := TokenizeAndStem(text)
	seen := make(map[string]bool, len(stems))
	result := make([]string, 0, len(stems))
	for _, s := range stems {
		if seen[s] {
			continue
		}
		seen[s] = true
		result = append(result, s)
	}
	return result
}
