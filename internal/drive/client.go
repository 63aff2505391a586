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

// Package drive provides the Google Drive v3 operations the archive needs:
// folder creation, multipart file upload, appProperties updates, listing,
// and deletion. Every call carries an explicit timeout so a stalled Drive
// request cannot wedge message processing.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"
)

const (
	// DefaultBaseURL is the production Google APIs endpoint. The API and
	// upload paths both hang off it.
	DefaultBaseURL = "https://www.googleapis.com"

	// folderMimeType marks a Drive file as a folder.
	folderMimeType = "application/vnd.google-apps.folder"

	// requestTimeout bounds metadata calls; uploadTimeout bounds media
	// uploads, which carry the document bytes.
	requestTimeout = 15 * time.Second
	uploadTimeout  = 60 * time.Second
)

// File is a Drive file or folder with the fields the archiver reads.
type File struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	AppProperties map[string]string `json:"appProperties"`
}

// listResponse is a page of the files.list endpoint.
type listResponse struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

// Client calls the Drive API through an OAuth-authenticated http.Client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Drive client. baseURL is injectable for tests.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// CreateFolder creates a named folder under the given parent and returns
// its file ID.
func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"name":     name,
		"mimeType": folderMimeType,
		"parents":  []string{parentID},
	})
	if err != nil {
		return "", fmt.Errorf("marshal folder metadata: %w", err)
	}

	var created File
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/drive/v3/files?fields=id",
		"application/json", bytes.NewReader(body), requestTimeout, &created); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	return created.ID, nil
}

// Upload stores the content of r as a file named name inside folderID and
// returns the new file's ID. Uses the multipart upload protocol so metadata
// and media go in one request.
func (c *Client) Upload(ctx context.Context, folderID string, r io.Reader, name, mimeType string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return "", fmt.Errorf("create metadata part: %w", err)
	}
	if err := json.NewEncoder(metaPart).Encode(map[string]any{
		"name":    name,
		"parents": []string{folderID},
	}); err != nil {
		return "", fmt.Errorf("encode file metadata: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mimeType)
	mediaPart, err := mw.CreatePart(mediaHeader)
	if err != nil {
		return "", fmt.Errorf("create media part: %w", err)
	}
	if _, err := io.Copy(mediaPart, r); err != nil {
		return "", fmt.Errorf("copy media content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalise multipart body: %w", err)
	}

	uploadURL := c.baseURL + "/upload/drive/v3/files?uploadType=multipart&fields=id"
	contentType := "multipart/related; boundary=" + mw.Boundary()

	var uploaded File
	if err := c.do(ctx, http.MethodPost, uploadURL, contentType, &buf, uploadTimeout, &uploaded); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return uploaded.ID, nil
}

// UpdateAppProperties patches the appProperties of a file in place.
func (c *Client) UpdateAppProperties(ctx context.Context, fileID string, props map[string]string) error {
	body, err := json.Marshal(map[string]any{"appProperties": props})
	if err != nil {
		return fmt.Errorf("marshal appProperties: %w", err)
	}

	patchURL := fmt.Sprintf("%s/drive/v3/files/%s", c.baseURL, url.PathEscape(fileID))
	if err := c.do(ctx, http.MethodPatch, patchURL, "application/json", bytes.NewReader(body), requestTimeout, nil); err != nil {
		return fmt.Errorf("update appProperties: %w", err)
	}
	return nil
}

// List returns every file directly under parentID, with appProperties
// included. Pages through the full listing.
func (c *Client) List(ctx context.Context, parentID string) ([]File, error) {
	var files []File
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("q", fmt.Sprintf("'%s' in parents and trashed = false", parentID))
		params.Set("fields", "nextPageToken, files(id, name, appProperties)")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		listURL := fmt.Sprintf("%s/drive/v3/files?%s", c.baseURL, params.Encode())

		var page listResponse
		if err := c.do(ctx, http.MethodGet, listURL, "", nil, requestTimeout, &page); err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}

		files = append(files, page.Files...)

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return files, nil
}

// Delete removes a file or folder (and, for folders, everything inside).
func (c *Client) Delete(ctx context.Context, fileID string) error {
	deleteURL := fmt.Sprintf("%s/drive/v3/files/%s", c.baseURL, url.PathEscape(fileID))
	if err := c.do(ctx, http.MethodDelete, deleteURL, "", nil, requestTimeout, nil); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	return nil
}

// do performs one Drive API request with a bounded timeout and decodes the
// JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body io.Reader, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("drive API returned HTTP %d: %s", resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
