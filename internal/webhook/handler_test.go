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

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ajensen/warranty-archiver/internal/ledger"
)

// mockTrigger counts runs and optionally fails.
type mockTrigger struct {
	runs atomic.Int32
	err  error
}

func (m *mockTrigger) Run(_ context.Context) error {
	m.runs.Add(1)
	return m.err
}

// mockRecords serves a fixed set of ledger records.
type mockRecords struct {
	records []ledger.Record
}

func (m *mockRecords) Recent(_ context.Context, limit int) ([]ledger.Record, error) {
	if limit > len(m.records) {
		limit = len(m.records)
	}
	return m.records[:limit], nil
}

func (m *mockRecords) Get(_ context.Context, messageID string) (*ledger.Record, error) {
	for i := range m.records {
		if m.records[i].MessageID == messageID {
			return &m.records[i], nil
		}
	}
	return nil, nil
}

// TestServeGmail_TriggersRun verifies a valid notification runs a pass and
// returns 200.
func TestServeGmail_TriggersRun(t *testing.T) {
	trigger := &mockTrigger{}
	h := NewHandler(trigger, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/gmail",
		strings.NewReader(`{"message": {"data": "abc", "messageId": "1"}}`))
	rr := httptest.NewRecorder()

	h.ServeGmail(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := trigger.runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

// TestServeGmail_MissingMessageField verifies the 400 contract.
func TestServeGmail_MissingMessageField(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"null message", `{"message": null}`},
		{"not json", `not json at all`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &mockTrigger{}
			h := NewHandler(trigger, nil)

			req := httptest.NewRequest(http.MethodPost, "/webhook/gmail", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			h.ServeGmail(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			if got := trigger.runs.Load(); got != 0 {
				t.Errorf("runs = %d, want 0", got)
			}
		})
	}
}

// TestServeGmail_TriggerFailure verifies a failed discovery pass surfaces
// as 500.
func TestServeGmail_TriggerFailure(t *testing.T) {
	trigger := &mockTrigger{err: errors.New("gmail list failed")}
	h := NewHandler(trigger, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/gmail",
		strings.NewReader(`{"message": {"data": "abc"}}`))
	rr := httptest.NewRecorder()

	h.ServeGmail(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

// TestServeGmail_NonPost verifies only POST is accepted.
func TestServeGmail_NonPost(t *testing.T) {
	trigger := &mockTrigger{}
	h := NewHandler(trigger, nil)

	req := httptest.NewRequest(http.MethodGet, "/webhook/gmail", nil)
	rr := httptest.NewRecorder()

	h.ServeGmail(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
	if got := trigger.runs.Load(); got != 0 {
		t.Errorf("runs = %d, want 0", got)
	}
}

// TestServeHealth verifies the fixed health payload.
func TestServeHealth(t *testing.T) {
	h := NewHandler(&mockTrigger{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	h.ServeHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if body := rr.Body.String(); body != `{"status": "healthy"}` {
		t.Errorf("body = %q", body)
	}
}

// TestServeRecent verifies the ledger listing endpoint.
func TestServeRecent(t *testing.T) {
	records := &mockRecords{records: []ledger.Record{
		{MessageID: "msg-1", Status: ledger.StatusArchived, FolderID: "f-1"},
		{MessageID: "msg-2", Status: ledger.StatusAbandoned, Reason: "form is missing name or email"},
	}}
	h := NewHandler(&mockTrigger{}, records)

	req := httptest.NewRequest(http.MethodGet, "/submissions", nil)
	rr := httptest.NewRecorder()

	h.ServeRecent(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var got []ledger.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].Reason != "form is missing name or email" {
		t.Errorf("reason = %q", got[1].Reason)
	}
}

// TestServeRecent_BadLimit verifies limit validation.
func TestServeRecent_BadLimit(t *testing.T) {
	h := NewHandler(&mockTrigger{}, &mockRecords{})

	for _, limit := range []string{"0", "-1", "101", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/submissions?limit="+limit, nil)
		rr := httptest.NewRecorder()

		h.ServeRecent(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want %d", limit, rr.Code, http.StatusBadRequest)
		}
	}
}

// TestServeRecent_NoLedger verifies the endpoint degrades when the ledger
// is not wired.
func TestServeRecent_NoLedger(t *testing.T) {
	h := NewHandler(&mockTrigger{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/submissions", nil)
	rr := httptest.NewRecorder()

	h.ServeRecent(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

// TestServeSubmission verifies single-record lookup and the 404 contract.
func TestServeSubmission(t *testing.T) {
	records := &mockRecords{records: []ledger.Record{
		{MessageID: "msg-1", Status: ledger.StatusArchived, CustomerName: "Lars Larsen"},
	}}
	h := NewHandler(&mockTrigger{}, records)

	req := httptest.NewRequest(http.MethodGet, "/submissions/msg-1", nil)
	req.SetPathValue("id", "msg-1")
	rr := httptest.NewRecorder()

	h.ServeSubmission(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var got ledger.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.CustomerName != "Lars Larsen" {
		t.Errorf("customer = %q", got.CustomerName)
	}

	req = httptest.NewRequest(http.MethodGet, "/submissions/msg-unknown", nil)
	req.SetPathValue("id", "msg-unknown")
	rr = httptest.NewRecorder()

	h.ServeSubmission(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
