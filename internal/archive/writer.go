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

// Package archive persists one warranty submission as a Drive folder
// holding the PDF and a serialized form_data.txt, stamped with retention
// metadata. The retention stamp goes on last — a folder without it is the
// reliable signal of an archival that did not complete.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ajensen/warranty-archiver/internal/drive"
	"github.com/ajensen/warranty-archiver/internal/models"
)

const (
	// MetadataFilename is the fixed name of the serialized form record.
	MetadataFilename = "form_data.txt"

	// retentionYears is how long archived submissions are kept before the
	// sweeper may delete them.
	retentionYears = 5
)

// RetentionDateProperty is the appProperties key holding the RFC3339
// expiry. The sweeper keys off it; folders without it are never deleted.
const RetentionDateProperty = "retentionDate"

// tsReplacer makes an ISO timestamp safe for use inside a folder name.
var tsReplacer = strings.NewReplacer(":", "-", ".", "-")

// Writer archives submissions under a fixed Drive root folder.
type Writer struct {
	drive        *drive.Client
	rootFolderID string
}

// NewWriter creates an archive writer rooted at rootFolderID.
func NewWriter(d *drive.Client, rootFolderID string) *Writer {
	return &Writer{
		drive:        d,
		rootFolderID: rootFolderID,
	}
}

// Archive creates the per-submission folder, uploads the document and the
// serialized form record, then applies the retention stamp. The stamp is
// strictly last so partial folders are never mistaken for committed ones.
// Returns the new folder's ID.
func (w *Writer) Archive(ctx context.Context, sub models.Submission, doc *models.Document) (string, error) {
	folderName := ContainerName(sub.Name, sub.Email, time.Now().UTC())

	folderID, err := w.drive.CreateFolder(ctx, w.rootFolderID, folderName)
	if err != nil {
		return "", fmt.Errorf("create archive folder: %w", err)
	}

	pdf, err := os.Open(doc.Path)
	if err != nil {
		return "", fmt.Errorf("open downloaded document: %w", err)
	}
	_, uploadErr := w.drive.Upload(ctx, folderID, pdf, doc.Name, "application/pdf")
	pdf.Close()
	if uploadErr != nil {
		return "", fmt.Errorf("upload document: %w", uploadErr)
	}

	if err := w.uploadMetadata(ctx, folderID, sub, filepath.Dir(doc.Path)); err != nil {
		return "", fmt.Errorf("upload form metadata: %w", err)
	}

	retention := time.Now().UTC().AddDate(retentionYears, 0, 0)
	if err := w.drive.UpdateAppProperties(ctx, folderID, map[string]string{
		RetentionDateProperty: retention.Format(time.RFC3339),
		"customerName":        sub.Name,
		"customerEmail":       sub.Email,
	}); err != nil {
		return "", fmt.Errorf("stamp retention metadata: %w", err)
	}

	slog.Info("submission archived",
		"folder", folderName,
		"folder_id", folderID,
		"retention_date", retention.Format(time.RFC3339),
	)

	return folderID, nil
}

// uploadMetadata serializes the submission to a scratch file next to the
// downloaded document and uploads it. The scratch file is removed whether
// or not the upload succeeds.
func (w *Writer) uploadMetadata(ctx context.Context, folderID string, sub models.Submission, scratchDir string) error {
	scratchPath := filepath.Join(scratchDir, MetadataFilename)

	if err := os.WriteFile(scratchPath, []byte(Serialize(sub)), 0o644); err != nil {
		return fmt.Errorf("write metadata scratch file: %w", err)
	}
	defer os.Remove(scratchPath)

	f, err := os.Open(scratchPath)
	if err != nil {
		return fmt.Errorf("open metadata scratch file: %w", err)
	}
	defer f.Close()

	if _, err := w.drive.Upload(ctx, folderID, f, MetadataFilename, "text/plain"); err != nil {
		return err
	}
	return nil
}

// Serialize renders the submission as "key: value" lines in fixed order.
func Serialize(sub models.Submission) string {
	var b strings.Builder
	for _, f := range sub.Fields() {
		fmt.Fprintf(&b, "%s: %s\n", f.Key, f.Value)
	}
	return b.String()
}

// ContainerName builds the archive folder name for a submission:
// "{name} - {email} - {ISO timestamp}" with ':' and '.' replaced so the
// name stays path-safe.
func ContainerName(name, email string, t time.Time) string {
	ts := tsReplacer.Replace(t.UTC().Format("2006-01-02T15:04:05.000Z"))
	return fmt.Sprintf("%s - %s - %s", name, email, ts)
}
