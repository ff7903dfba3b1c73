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
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"corpusindex/internal/stem"
)

// Tag weights applied when accumulating a text node's terms.
const (
	weightTitle   = 0.4
	weightHeading = 0.3
	weightStrong  = 0.2
	weightDefault = 0.1
)

var headingPattern = regexp.MustCompile(`^h[1-6]$`)

var excludedParentTags = map[string]bool{
	"style":      true,
	"script":     true,
	"head":       true,
	"meta":       true,
	"[document]": true,
}

var boldTags = map[string]bool{
	"strong": true,
	"b":      true,
}

func tagWeight(tag string) float64 {
	switch {
	case tag == "title":
		return weightTitle
	case headingPattern.MatchString(tag):
		return weightHeading
	case boldTags[tag]:
		return weightStrong
	default:
		return weightDefault
	}
}

// ExtractWeightedFrequencies walks every text node of an HTML document,
// ignoring style/script/head/meta content and comments, and returns a
// weighted term-frequency counter: for each visible text node, every
// stemmed token's count is multiplied by the weight of the node's
// parent tag and accumulated into the document total.
//
// Ported from original_source/indexer.py's weighted_frequencies and
// extract_contents, using goquery/x-net-html in place of BeautifulSoup.
func ExtractWeightedFrequencies(htmlBody string) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("ingest: parse html: %w", err)
	}

	freqs := make(map[string]float64)
	for _, root := range doc.Nodes {
		walkTextNodes(root, freqs)
	}
	return freqs, nil
}

func walkTextNodes(n *html.Node, freqs map[string]float64) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.CommentNode:
			continue
		case html.TextNode:
			parentTag := parentTagName(c.Parent)
			if excludedParentTags[parentTag] {
				continue
			}
			accumulateTerms(c.Data, tagWeight(parentTag), freqs)
		default:
			walkTextNodes(c, freqs)
		}
	}
}

func parentTagName(parent *html.Node) string {
	if parent == nil {
		return "[document]"
	}
	if parent.Type == html.DocumentNode {
		return "[document]"
	}
	return parent.Data
}

func accumulateTerms(text string, weight float64, freqs map[string]float64) {
	terms := stem.TokenizeAndStem(text)
	if len(terms) == 0 {
		return
	}
	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}
	for t, c := range counts {
		freqs[t] += float64(c) * weight
	}
}
