// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fetch downloads warranty PDFs from resolved document URLs with
// bounded timeouts and redirect limits, and stages them in a local scratch
// directory for upload.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajensen/warranty-archiver/internal/models"
)

const (
	// maxRedirects bounds redirect chains — wrapped links typically hop
	// through one or two CDN redirects.
	maxRedirects = 5

	// fetchTimeout bounds the whole download, connect included.
	fetchTimeout = 10 * time.Second

	// defaultFilename is used when neither the response headers nor the
	// URL yield a usable name.
	defaultFilename = "warranty_form.pdf"
)

// unsafeChars matches everything outside the filename-safe character set.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Fetcher downloads documents into per-message scratch directories.
type Fetcher struct {
	client      *http.Client
	downloadDir string
}

// NewFetcher creates a fetcher that stages downloads under downloadDir.
func NewFetcher(downloadDir string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		downloadDir: downloadDir,
	}
}

// Fetch retrieves the document at rawURL and writes it to a scratch file.
//
// Returns (nil, nil) when the response is not a PDF — a wrapped link that
// resolves to an HTML page or anything else is "no document", not an error.
// Network errors, non-2xx statuses, and write failures are errors; the
// caller abandons the message either way.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build document request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("document fetch returned HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "pdf") {
		slog.Warn("fetched content is not a PDF",
			"content_type", contentType,
			"url", rawURL,
		)
		return nil, nil
	}

	// Name from the final URL, not the requested one — redirect hops are
	// where the real document filename usually appears.
	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	name := resolveFilename(resp.Header.Get("Content-Disposition"), finalURL)

	// Each download gets its own scratch directory so duplicate filenames
	// from separate messages never collide.
	dir := filepath.Join(f.downloadDir, uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	outPath := filepath.Join(dir, name)
	out, err := os.Create(outPath)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("create scratch file: %w", err)
	}

	size, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("write document: %w", err)
	}
	if closeErr != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("close scratch file: %w", closeErr)
	}

	slog.Info("document downloaded",
		"name", name,
		"bytes", size,
		"path", outPath,
	)

	return &models.Document{
		Path:        outPath,
		Name:        name,
		ContentType: contentType,
		Size:        size,
	}, nil
}

// resolveFilename derives the output filename: Content-Disposition first,
// then the URL path if it ends in .pdf, then the fixed default. The result
// is always sanitized to a safe character set.
func resolveFilename(disposition, rawURL string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if fn := params["filename"]; fn != "" {
				return sanitizeFilename(fn)
			}
		}
	}

	if base := path.Base(strings.SplitN(rawURL, "?", 2)[0]); strings.HasSuffix(base, ".pdf") {
		return sanitizeFilename(base)
	}

	return defaultFilename
}

// sanitizeFilename strips directory components and replaces every
// character outside [a-zA-Z0-9.-] with an underscore.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		return defaultFilename
	}
	return name
}
