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

// Package pipeline drives warranty submissions end-to-end: discover new
// messages, extract the form and the document link, download the PDF, and
// archive everything to Drive. Each message is processed in isolation —
// a failure abandons that message only, never the batch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ajensen/warranty-archiver/internal/extract"
	"github.com/ajensen/warranty-archiver/internal/gmail"
	"github.com/ajensen/warranty-archiver/internal/models"
)

// MessageSource lists and fetches candidate messages.
// Implemented by gmail.Client.
type MessageSource interface {
	List(ctx context.Context, query string, after time.Time) ([]gmail.MessageRef, error)
	Get(ctx context.Context, messageID string) (*gmail.Message, error)
}

// DocumentFetcher downloads a resolved document URL to local scratch.
// Implemented by fetch.Fetcher.
type DocumentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.Document, error)
}

// Archiver persists a submission to the storage backend.
// Implemented by archive.Writer.
type Archiver interface {
	Archive(ctx context.Context, sub models.Submission, doc *models.Document) (string, error)
}

// Ledger is the durable processed-message record.
// Implemented by ledger.Store.
type Ledger interface {
	Archived(ctx context.Context, messageID string) (bool, error)
	MarkArchived(ctx context.Context, messageID, folderID, name, email string) error
	MarkAbandoned(ctx context.Context, messageID, reason string) error
}

// Dedup is the fast seen-message filter.
// Implemented by dedup.Filter.
type Dedup interface {
	IsNew(ctx context.Context, messageID string) (bool, error)
	Forget(ctx context.Context, messageID string) error
}

// Processor runs the discovery and per-message archival pipeline.
type Processor struct {
	source   MessageSource
	fetcher  DocumentFetcher
	archiver Archiver
	ledger   Ledger
	dedup    Dedup

	query    string
	lookback time.Duration

	// mu serializes runs — the webhook trigger and the poll timer share
	// one processor, and overlapping passes would double-process windows.
	mu sync.Mutex
}

// Config holds the processor's dependencies.
type Config struct {
	Source   MessageSource
	Fetcher  DocumentFetcher
	Archiver Archiver
	Ledger   Ledger
	Dedup    Dedup
	Query    string
	Lookback time.Duration
}

// NewProcessor creates a submission processor.
func NewProcessor(cfg Config) *Processor {
	lookback := cfg.Lookback
	if lookback == 0 {
		lookback = time.Minute
	}
	return &Processor{
		source:   cfg.Source,
		fetcher:  cfg.Fetcher,
		archiver: cfg.Archiver,
		ledger:   cfg.Ledger,
		dedup:    cfg.Dedup,
		query:    cfg.Query,
		lookback: lookback,
	}
}

// Run executes one discovery + process pass: list messages matching the
// search query inside the trailing window, then handle them sequentially.
// Returns an error only when discovery itself fails; per-message failures
// are logged and contained.
func (p *Processor) Run(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	after := time.Now().UTC().Add(-p.lookback)

	refs, err := p.source.List(ctx, p.query, after)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	slog.Info("discovery pass",
		"candidates", len(refs),
		"window_start", after.Format(time.RFC3339),
	)

	for _, ref := range refs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		p.processMessage(ctx, ref.ID)
	}

	return nil
}

// processMessage handles one message end-to-end, applying both idempotency
// guards before any work happens.
func (p *Processor) processMessage(ctx context.Context, messageID string) {
	// Durable guard: an already-archived message is a safe no-op.
	if p.ledger != nil {
		done, err := p.ledger.Archived(ctx, messageID)
		if err != nil {
			slog.Warn("ledger lookup failed, proceeding", "message_id", messageID, "error", err)
		} else if done {
			slog.Debug("skipping already-archived message", "message_id", messageID)
			return
		}
	}

	// Fast guard: overlapping windows rediscover the same IDs.
	if p.dedup != nil {
		isNew, err := p.dedup.IsNew(ctx, messageID)
		if err != nil {
			slog.Warn("dedup check failed, proceeding", "message_id", messageID, "error", err)
		} else if !isNew {
			slog.Debug("skipping duplicate message", "message_id", messageID)
			return
		}
	}

	reason, err := p.process(ctx, messageID)

	switch {
	case err != nil:
		slog.Error("message processing failed",
			"message_id", messageID,
			"error", err,
		)
		p.recordAbandon(ctx, messageID, err.Error())

	case reason != "":
		slog.Info("message abandoned",
			"message_id", messageID,
			"reason", reason,
		)
		p.recordAbandon(ctx, messageID, reason)
	}
}

// process runs the per-message stages. A non-empty reason means the message
// is not a valid submission (expected, abandoned quietly); an error means a
// stage failed (fetch, storage). Either way no archive side effect remains.
func (p *Processor) process(ctx context.Context, messageID string) (reason string, err error) {
	msg, err := p.source.Get(ctx, messageID)
	if err != nil {
		return "", fmt.Errorf("fetch message: %w", err)
	}
	if msg == nil {
		return "message no longer exists", nil
	}

	htmlBody, ok := gmail.HTMLBody(msg)
	if !ok {
		return "no HTML content in message", nil
	}

	sub := extract.ParseForm(htmlBody)
	if !sub.Complete() {
		return "form is missing name or email", nil
	}

	wrapped := extract.FindDocumentLink(htmlBody)
	if wrapped == "" {
		return "no PDF link in message", nil
	}

	target := extract.ResolveWrappedLink(wrapped)
	if target == "" {
		return "PDF link did not resolve", nil
	}

	doc, err := p.fetcher.Fetch(ctx, target)
	if err != nil {
		return "", fmt.Errorf("download document: %w", err)
	}
	if doc == nil {
		return "resolved URL did not serve a PDF", nil
	}
	// The whole scratch dir goes once the message is settled.
	defer os.RemoveAll(filepath.Dir(doc.Path))

	folderID, err := p.archiver.Archive(ctx, sub, doc)
	if err != nil {
		return "", fmt.Errorf("archive submission: %w", err)
	}

	if p.ledger != nil {
		if err := p.ledger.MarkArchived(ctx, messageID, folderID, sub.Name, sub.Email); err != nil {
			slog.Error("ledger update failed after archive",
				"message_id", messageID,
				"folder_id", folderID,
				"error", err,
			)
		}
	}

	slog.Info("submission processed",
		"message_id", messageID,
		"customer", sub.Name,
		"folder_id", folderID,
	)

	return "", nil
}

// recordAbandon notes the outcome in the ledger and clears the dedup marker
// so the next poll window that still covers the message can retry it.
func (p *Processor) recordAbandon(ctx context.Context, messageID, reason string) {
	if p.ledger != nil {
		if err := p.ledger.MarkAbandoned(ctx, messageID, reason); err != nil {
			slog.Warn("ledger abandon update failed", "message_id", messageID, "error", err)
		}
	}
	if p.dedup != nil {
		if err := p.dedup.Forget(ctx, messageID); err != nil {
			slog.Warn("dedup forget failed", "message_id", messageID, "error", err)
		}
	}
}
