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

// Package corpus builds the zip archive that internal/ingest consumes:
// it crawls webpages or unpacks git/zip source trees into a directory
// of {url, content} JSON envelopes, then packs that directory into a
// single archive.
package corpus

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-git/go-git/v5"

	"corpusindex/internal/ingest"
)

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// Source names one webpage crawl seed: a set of same-origin URLs to
// fetch, following internal links, skipping any URL matching
// ExcludePattern.
type Source struct {
	Name           string
	ExcludePattern string
	URLs           []string
}

// FetchWebpages crawls every Source's seed URLs, following links that
// start with a seed URL, and writes one numbered JSON envelope file per fetched page
// into outDir.
func FetchWebpages(sources []Source, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("corpus: create output dir: %w", err)
	}
	docCount := 0
	for _, src := range sources {
		c, err := newCrawler(src, outDir, &docCount)
		if err != nil {
			return fmt.Errorf("corpus: fetch source %s: %w", src.Name, err)
		}
		if err := c.run(); err != nil {
			return fmt.Errorf("corpus: fetch source %s: %w", src.Name, err)
		}
	}
	return nil
}

// crawler holds the mutable state of one same-origin breadth-first
// crawl: the work queue, which URLs have already been queued or
// fetched, and where fetched pages are written.
type crawler struct {
	seeds          []string
	excludePattern *regexp.Regexp
	outDir         string
	docCount       *int

	queue   []string
	fetched map[string]bool
	queued  map[string]bool
}

func newCrawler(source Source, outDir string, docCount *int) (*crawler, error) {
	if len(source.URLs) == 0 {
		return nil, errors.New("no urls provided")
	}
	var excludePattern *regexp.Regexp
	if source.ExcludePattern != "" {
		var err error
		excludePattern, err = regexp.Compile(source.ExcludePattern)
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern: %w", err)
		}
	}

	c := &crawler{
		seeds:          source.URLs,
		excludePattern: excludePattern,
		outDir:         outDir,
		docCount:       docCount,
		queue:          append([]string(nil), source.URLs...),
		fetched:        make(map[string]bool),
		queued:         make(map[string]bool),
	}
	for _, u := range source.URLs {
		c.queued[u] = true
	}
	return c, nil
}

func (c *crawler) run() error {
	for len(c.queue) > 0 {
		target := c.queue[0]
		c.queue = c.queue[1:]
		if err := c.visit(target); err != nil {
			return err
		}
	}
	return nil
}

// visit normalizes target, fetches it unless already seen or excluded,
// writes its envelope, and enqueues any same-origin links it contains.
// Fetch and parse failures are logged and skipped rather than aborting
// the crawl, since one bad page shouldn't stop the rest of the source.
func (c *crawler) visit(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		log.Printf("corpus: skipping unparseable url %s: %v", target, err)
		return nil
	}
	u.Fragment = ""
	normalized := u.String()
	if c.fetched[normalized] {
		return nil
	}
	if !c.isSeed(normalized) && c.excluded(normalized) {
		return nil
	}

	body, err := c.fetch(normalized)
	if err != nil {
		log.Printf("corpus: %v", err)
		return nil
	}
	c.fetched[normalized] = true

	if err := writeEnvelope(c.outDir, c.docCount, normalized, string(body)); err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}
	base, err := url.Parse(normalized)
	if err != nil {
		return nil
	}
	c.enqueueLinks(doc, base)
	return nil
}

func (c *crawler) isSeed(target string) bool {
	for _, seed := range c.seeds {
		if target == seed {
			return true
		}
	}
	return false
}

func (c *crawler) excluded(target string) bool {
	return c.excludePattern != nil && c.excludePattern.MatchString(target)
}

func (c *crawler) fetch(target string) ([]byte, error) {
	resp, err := httpClient.Get(target)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", target, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", target, err)
	}
	return body, nil
}

// enqueueLinks appends every link found in doc whose URL starts with
// one of the seed URLs to the crawl queue, skipping links already
// queued. Other links on the same origin are not followed.
func (c *crawler) enqueueLinks(doc *goquery.Document, base *url.URL) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		absolute, err := base.Parse(href)
		if err != nil {
			return
		}
		absolute.Fragment = ""
		link := absolute.String()
		if c.queued[link] {
			return
		}
		for _, seed := range c.seeds {
			if strings.HasPrefix(link, seed) {
				c.queued[link] = true
				c.queue = append(c.queue, link)
				return
			}
		}
	})
}

func writeEnvelope(outDir string, docCount *int, urlStr, content string) error {
	env := ingest.Envelope{URL: urlStr, Content: content}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("corpus: marshal envelope for %s: %w", urlStr, err)
	}
	path := filepath.Join(outDir, fmt.Sprintf("%d.json", *docCount))
	*docCount++
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("corpus: write envelope %s: %w", path, err)
	}
	return nil
}

// FetchGitArchive clones repoURL if it names a git repository, or
// downloads and unzips it if it names a .zip archive, into targetDir.
func FetchGitArchive(repoURL, targetDir string) error {
	if strings.HasSuffix(repoURL, ".zip") {
		return fetchZipArchive(repoURL, targetDir)
	}

	if _, err := git.PlainClone(targetDir, false, &git.CloneOptions{URL: repoURL}); err != nil {
		return fmt.Errorf("corpus: clone repo %s: %w", repoURL, err)
	}
	return nil
}

func fetchZipArchive(archiveURL, targetDir string) error {
	tmpDir, err := os.MkdirTemp("", "corpusindex-fetch-")
	if err != nil {
		return fmt.Errorf("corpus: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	zipPath := filepath.Join(tmpDir, filepath.Base(archiveURL))
	if err := downloadToFile(archiveURL, zipPath); err != nil {
		return fmt.Errorf("corpus: download %s: %w", archiveURL, err)
	}
	if err := extractZip(zipPath, targetDir); err != nil {
		return fmt.Errorf("corpus: extract %s: %w", zipPath, err)
	}
	return nil
}

func downloadToFile(fetchURL, destPath string) error {
	resp, err := httpClient.Get(fetchURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}

// extractZip unpacks every entry of the archive at src into dest,
// creating parent directories as needed.
func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, entry := range r.File {
		if err := extractZipEntry(entry, dest); err != nil {
			return fmt.Errorf("%s: %w", entry.Name, err)
		}
	}
	return nil
}

func extractZipEntry(entry *zip.File, dest string) error {
	target := filepath.Join(dest, entry.Name)
	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, os.ModePerm)
	}
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return err
	}

	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode())
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, rc)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}

// PackArchive walks srcDir and writes every *.json file it finds into
// a single zip archive at zipPath, producing the exact input artifact
// internal/ingest consumes.
func PackArchive(srcDir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("corpus: create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(rel)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("corpus: pack archive: %w", err)
	}
	return zw.Close()
}
