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

package sweep

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ajensen/warranty-archiver/internal/drive"
)

// sweepServer fakes the Drive list + delete endpoints.
type sweepServer struct {
	mu         sync.Mutex
	files      []map[string]any
	deleted    []string
	failDelete map[string]bool
}

func (s *sweepServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/drive/v3/files", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"files": s.files})
	})
	mux.HandleFunc("/drive/v3/files/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/drive/v3/files/")
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failDelete[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.deleted = append(s.deleted, id)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func folder(id, name, retentionDate string) map[string]any {
	f := map[string]any{"id": id, "name": name}
	if retentionDate != "" {
		f["appProperties"] = map[string]string{"retentionDate": retentionDate}
	}
	return f
}

// TestSweep verifies the retention contract: delete expired containers,
// keep future ones, never touch unstamped ones.
func TestSweep(t *testing.T) {
	past := time.Now().UTC().AddDate(-1, 0, 0).Format(time.RFC3339)
	future := time.Now().UTC().AddDate(1, 0, 0).Format(time.RFC3339)

	fake := &sweepServer{
		files: []map[string]any{
			folder("f-expired", "Old - old@example.com - ts", past),
			folder("f-future", "New - new@example.com - ts", future),
			folder("f-unstamped", "Partial - none - ts", ""),
			folder("f-garbage", "Bad - bad@example.com - ts", "not-a-date"),
		},
	}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	s := NewSweeper(drive.NewClient(server.Client(), server.URL), "root-1")
	res, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.deleted) != 1 || fake.deleted[0] != "f-expired" {
		t.Errorf("deleted = %v, want [f-expired]", fake.deleted)
	}
	if res.Examined != 4 {
		t.Errorf("Examined = %d, want 4", res.Examined)
	}
	if res.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", res.Deleted)
	}
	if res.Kept != 3 {
		t.Errorf("Kept = %d, want 3", res.Kept)
	}
}

// TestSweep_DeleteFailureContinues verifies one failed delete does not
// stop the rest of the sweep.
func TestSweep_DeleteFailureContinues(t *testing.T) {
	past := time.Now().UTC().AddDate(-1, 0, 0).Format(time.RFC3339)

	fake := &sweepServer{
		files: []map[string]any{
			folder("f-1", "one", past),
			folder("f-2", "two", past),
			folder("f-3", "three", past),
		},
		failDelete: map[string]bool{"f-2": true},
	}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	s := NewSweeper(drive.NewClient(server.Client(), server.URL), "root-1")
	res, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.deleted) != 2 {
		t.Errorf("deleted = %v, want f-1 and f-3", fake.deleted)
	}
	if res.Errors != 1 {
		t.Errorf("Errors = %d, want 1", res.Errors)
	}
	if res.Deleted != 2 {
		t.Errorf("Deleted = %d, want 2", res.Deleted)
	}
}

// TestSweep_ListFailure verifies a failed listing aborts the sweep with an
// error.
func TestSweep_ListFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewSweeper(drive.NewClient(server.Client(), server.URL), "root-1")
	if _, err := s.Sweep(context.Background()); err == nil {
		t.Error("expected error when listing fails")
	}
}
