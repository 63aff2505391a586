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

// Package gmail provides a thin client for the Gmail REST API: listing
// messages by search query and fetching full message content. Requests go
// through an injected OAuth-authenticated http.Client.
package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the production Gmail API endpoint.
const DefaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

// requestTimeout bounds every individual API call.
const requestTimeout = 15 * time.Second

// MessageRef identifies a message returned by a list query.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// Message is a full Gmail message with its multi-part payload tree.
type Message struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
	Payload Part   `json:"payload"`
}

// Part is one node of the MIME part tree. Leaf bodies carry base64url data.
type Part struct {
	MimeType string   `json:"mimeType"`
	Filename string   `json:"filename"`
	Body     PartBody `json:"body"`
	Parts    []Part   `json:"parts"`
}

// PartBody is the content of a single MIME part.
type PartBody struct {
	Size int    `json:"size"`
	Data string `json:"data"`
}

// listResponse is a page of the users.messages.list endpoint.
type listResponse struct {
	Messages      []MessageRef `json:"messages"`
	NextPageToken string       `json:"nextPageToken"`
}

// Client calls the Gmail API for a single mailbox ("me" under the
// authenticated account).
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Gmail API client. baseURL is injectable for tests.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// List returns the messages matching the search query, restricted to those
// received after the given time. Pages through the full result set.
func (c *Client) List(ctx context.Context, query string, after time.Time) ([]MessageRef, error) {
	q := fmt.Sprintf("%s after:%d", query, after.Unix())

	var refs []MessageRef
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("q", q)
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		listURL := fmt.Sprintf("%s/users/me/messages?%s", c.baseURL, params.Encode())

		var page listResponse
		if err := c.getJSON(ctx, listURL, &page); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}

		refs = append(refs, page.Messages...)

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return refs, nil
}

// Get retrieves the full message content for a message ID.
// Returns (nil, nil) if the message no longer exists.
func (c *Client) Get(ctx context.Context, messageID string) (*Message, error) {
	getURL := fmt.Sprintf("%s/users/me/messages/%s?format=full", c.baseURL, url.PathEscape(messageID))

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Warn("message not found (may have been deleted)",
			"message_id", messageID,
		)
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gmail API returned HTTP %d for message %s", resp.StatusCode, messageID)
	}

	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	return &msg, nil
}

// getJSON performs a GET with a per-call timeout and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gmail API returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
