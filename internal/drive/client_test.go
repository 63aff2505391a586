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

package drive

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestCreateFolder verifies the folder metadata request and ID extraction.
func TestCreateFolder(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/drive/v3/files" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "folder-123"}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)
	id, err := c.CreateFolder(context.Background(), "root-1", "Jane - jane@example.com - 2025-04-21T10-00-00-000Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "folder-123" {
		t.Errorf("folder ID = %q, want %q", id, "folder-123")
	}

	if gotBody["mimeType"] != folderMimeType {
		t.Errorf("mimeType = %v, want %q", gotBody["mimeType"], folderMimeType)
	}
	parents, _ := gotBody["parents"].([]any)
	if len(parents) != 1 || parents[0] != "root-1" {
		t.Errorf("parents = %v, want [root-1]", gotBody["parents"])
	}
}

// TestUpload verifies the multipart/related upload body carries both the
// metadata and the media content.
func TestUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload/drive/v3/files" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("uploadType"); got != "multipart" {
			t.Errorf("uploadType = %q, want multipart", got)
		}

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/related" {
			t.Fatalf("Content-Type = %q (%v), want multipart/related", mediaType, err)
		}

		mr := multipart.NewReader(r.Body, params["boundary"])

		metaPart, err := mr.NextPart()
		if err != nil {
			t.Fatalf("read metadata part: %v", err)
		}
		var meta map[string]any
		json.NewDecoder(metaPart).Decode(&meta)
		if meta["name"] != "invoice.pdf" {
			t.Errorf("metadata name = %v, want invoice.pdf", meta["name"])
		}

		mediaPart, err := mr.NextPart()
		if err != nil {
			t.Fatalf("read media part: %v", err)
		}
		if ct := mediaPart.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("media Content-Type = %q, want application/pdf", ct)
		}
		data, _ := io.ReadAll(mediaPart)
		if string(data) != "%PDF-1.4 content" {
			t.Errorf("media content = %q", data)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "file-456"}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)
	id, err := c.Upload(context.Background(), "folder-123", strings.NewReader("%PDF-1.4 content"), "invoice.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "file-456" {
		t.Errorf("file ID = %q, want %q", id, "file-456")
	}
}

// TestUpdateAppProperties verifies the PATCH body.
func TestUpdateAppProperties(t *testing.T) {
	var gotBody struct {
		AppProperties map[string]string `json:"appProperties"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/drive/v3/files/folder-123" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "folder-123"}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)
	err := c.UpdateAppProperties(context.Background(), "folder-123", map[string]string{
		"retentionDate": "2030-04-21T10:00:00Z",
		"customerName":  "Jane Angler",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotBody.AppProperties["retentionDate"] != "2030-04-21T10:00:00Z" {
		t.Errorf("retentionDate = %q", gotBody.AppProperties["retentionDate"])
	}
	if gotBody.AppProperties["customerName"] != "Jane Angler" {
		t.Errorf("customerName = %q", gotBody.AppProperties["customerName"])
	}
}

// TestList_Pages verifies pageToken paging and appProperties decoding.
func TestList_Pages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{
				"files": [{"id": "f1", "name": "one", "appProperties": {"retentionDate": "2020-01-01T00:00:00Z"}}],
				"nextPageToken": "page2"
			}`))
			return
		}
		w.Write([]byte(`{"files": [{"id": "f2", "name": "two"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)
	files, err := c.List(context.Background(), "root-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].AppProperties["retentionDate"] != "2020-01-01T00:00:00Z" {
		t.Errorf("appProperties not decoded: %+v", files[0])
	}
	if files[1].ID != "f2" {
		t.Errorf("second page file = %+v", files[1])
	}
}

// TestDelete verifies the DELETE request and error propagation.
func TestDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		if r.URL.Path == "/drive/v3/files/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)
	if err := c.Delete(context.Background(), "f1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := c.Delete(context.Background(), "gone"); err == nil {
		t.Error("expected error for HTTP 404, got none")
	}
}
