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

// Package webhook exposes the service's trigger surface: a Gmail push
// notification endpoint that kicks off an immediate discovery pass, and a
// health check. The notification content is never trusted — it only says
// "look at the mailbox now"; discovery decides what is actually new.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/ajensen/warranty-archiver/internal/ledger"
)

// Trigger runs one discovery + process pass.
// Implemented by pipeline.Processor.
type Trigger interface {
	Run(ctx context.Context) error
}

// Records reads processed-submission state for the ops endpoints.
// Implemented by ledger.Store.
type Records interface {
	Recent(ctx context.Context, limit int) ([]ledger.Record, error)
	Get(ctx context.Context, messageID string) (*ledger.Record, error)
}

// notification is the relevant slice of a Gmail push payload.
type notification struct {
	Message json.RawMessage `json:"message"`
}

// Handler serves the webhook endpoints.
type Handler struct {
	trigger Trigger
	records Records
}

// NewHandler creates a webhook handler driving the given trigger. records
// may be nil; the submission endpoints then report unavailable.
func NewHandler(trigger Trigger, records Records) *Handler {
	return &Handler{trigger: trigger, records: records}
}

// ServeGmail handles Gmail push notifications.
//
// The payload must carry a `message` field or the request is rejected with
// 400. A valid notification runs a discovery pass synchronously: 200 when
// the pass completes, 500 when the trigger path itself fails. Per-message
// failures inside the pass never surface here.
func (h *Handler) ServeGmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("failed to read webhook body", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	var n notification
	if err := json.Unmarshal(body, &n); err != nil || len(n.Message) == 0 || string(n.Message) == "null" {
		slog.Warn("invalid webhook payload", "body_len", len(body))
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	slog.Info("gmail push notification received")

	if err := h.trigger.Run(r.Context()); err != nil {
		slog.Error("triggered discovery pass failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// ServeHealth reports service liveness. No side effects.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "healthy"}`))
}

// ServeRecent lists the most recently updated ledger records, newest first.
// Abandoned messages carry their reason, so a glance here answers "why did
// that submission not land in Drive".
func (h *Handler) ServeRecent(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		http.Error(w, "ledger unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			http.Error(w, "limit must be 1-100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.records.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("ledger query failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}

	writeJSON(w, records)
}

// ServeSubmission returns the ledger record for a single message ID.
func (h *Handler) ServeSubmission(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		http.Error(w, "ledger unavailable", http.StatusServiceUnavailable)
		return
	}

	record, err := h.records.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("ledger query failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "unknown message", http.StatusNotFound)
		return
	}

	writeJSON(w, record)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Serve starts the webhook HTTP server on the given port.
// It binds the port immediately and signals readiness via the returned
// channel before starting to accept connections.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/gmail", handler.ServeGmail)
	mux.HandleFunc("/health", handler.ServeHealth)
	mux.HandleFunc("GET /submissions", handler.ServeRecent)
	mux.HandleFunc("GET /submissions/{id}", handler.ServeSubmission)

	server := &http.Server{
		Handler: mux,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind webhook port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("webhook server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("webhook server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("webhook server error", "error", err)
		}
	}()

	return ready, nil
}
