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

// Package sweep deletes archive containers whose retention period has
// expired. Containers without a retention stamp are never touched — an
// unstamped folder means an archival that did not complete, and deleting
// it would destroy the evidence.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ajensen/warranty-archiver/internal/archive"
	"github.com/ajensen/warranty-archiver/internal/drive"
)

// Result summarises one sweep pass.
type Result struct {
	Examined int
	Deleted  int
	Kept     int
	Errors   int
}

// Sweeper removes expired archive containers under the archive root.
type Sweeper struct {
	drive        *drive.Client
	rootFolderID string
}

// NewSweeper creates a retention sweeper rooted at rootFolderID.
func NewSweeper(d *drive.Client, rootFolderID string) *Sweeper {
	return &Sweeper{
		drive:        d,
		rootFolderID: rootFolderID,
	}
}

// Sweep lists every container under the archive root and deletes the ones
// whose retention date lies in the past. Individual delete failures are
// logged and the sweep continues.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	files, err := s.drive.List(ctx, s.rootFolderID)
	if err != nil {
		return Result{}, fmt.Errorf("list archive containers: %w", err)
	}

	now := time.Now().UTC()
	var res Result

	for _, f := range files {
		res.Examined++

		raw := f.AppProperties[archive.RetentionDateProperty]
		if raw == "" {
			res.Kept++
			continue
		}

		expiry, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			slog.Warn("unparsable retention date, keeping container",
				"name", f.Name,
				"value", raw,
			)
			res.Kept++
			continue
		}

		if !now.After(expiry) {
			res.Kept++
			continue
		}

		if err := s.drive.Delete(ctx, f.ID); err != nil {
			slog.Error("failed to delete expired container",
				"name", f.Name,
				"id", f.ID,
				"error", err,
			)
			res.Errors++
			continue
		}

		slog.Info("deleted expired container",
			"name", f.Name,
			"expired", raw,
		)
		res.Deleted++
	}

	slog.Info("retention sweep complete",
		"examined", res.Examined,
		"deleted", res.Deleted,
		"kept", res.Kept,
		"errors", res.Errors,
	)

	return res, nil
}
