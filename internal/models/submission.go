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

// Package models defines the data structures shared across the archiver service.
package models

// Submission holds the form fields extracted from a warranty email body.
// Every field defaults to the empty string; only Name and Email gate
// further processing.
type Submission struct {
	Date    string `json:"date"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Zip     string `json:"zip"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Dealer  string `json:"dealer"`
	Model   string `json:"model"`
	Length  string `json:"length"`
	Weight  string `json:"weight"`
}

// Complete reports whether the submission carries the fields required to
// identify a customer. Incomplete submissions are abandoned before any
// download or upload happens.
func (s Submission) Complete() bool {
	return s.Name != "" && s.Email != ""
}

// Fields returns the submission as ordered key/value pairs. The order is
// fixed so form_data.txt is stable across runs.
func (s Submission) Fields() []Field {
	return []Field{
		{"date", s.Date},
		{"name", s.Name},
		{"address", s.Address},
		{"zip", s.Zip},
		{"phone", s.Phone},
		{"email", s.Email},
		{"dealer", s.Dealer},
		{"model", s.Model},
		{"length", s.Length},
		{"weight", s.Weight},
	}
}

// Field is a single labeled submission value.
type Field struct {
	Key   string
	Value string
}

// Document is a fetched warranty PDF staged on local disk, ready for upload.
type Document struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}
