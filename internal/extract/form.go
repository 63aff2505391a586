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

package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/ajensen/warranty-archiver/internal/models"
)

// formLabels maps the recognized form labels to their submission fields.
// Matching is substring-based and case-sensitive — deliberately permissive,
// and lossy if the label text ever appears inside ordinary body copy.
var formLabels = []struct {
	label  string
	assign func(*models.Submission, string)
}{
	{"Date and Year:", func(s *models.Submission, v string) { s.Date = v }},
	{"Name:", func(s *models.Submission, v string) { s.Name = v }},
	{"Address:", func(s *models.Submission, v string) { s.Address = v }},
	{"ZIP:", func(s *models.Submission, v string) { s.Zip = v }},
	{"Phone number:", func(s *models.Submission, v string) { s.Phone = v }},
	{"Mail:", func(s *models.Submission, v string) { s.Email = v }},
	{"Name of Dealer:", func(s *models.Submission, v string) { s.Dealer = v }},
	{"Model:", func(s *models.Submission, v string) { s.Model = v }},
	{"Nordic Length:", func(s *models.Submission, v string) { s.Length = v }},
	{"Weight (AFTM)", func(s *models.Submission, v string) { s.Weight = v }},
}

// ParseForm renders the HTML body to line-oriented text and scans each line
// for the recognized labels. The value is everything after the delimiter
// that follows the label, trimmed. If a label occurs on multiple lines the
// last occurrence wins. Labels that never appear leave their field empty.
func ParseForm(htmlBody string) models.Submission {
	var sub models.Submission

	for _, line := range strings.Split(renderText(htmlBody), "\n") {
		for _, fl := range formLabels {
			idx := strings.Index(line, fl.label)
			if idx < 0 {
				continue
			}

			rest := line[idx+len(fl.label):]
			if !strings.HasSuffix(fl.label, ":") {
				// Label without a trailing colon — the delimiter follows
				// somewhere after it.
				c := strings.Index(rest, ":")
				if c < 0 {
					continue
				}
				rest = rest[c+1:]
			}

			fl.assign(&sub, strings.TrimSpace(rest))
		}
	}

	return sub
}

// blockElements are HTML elements that terminate a text line when rendering.
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "blockquote": true,
}

// renderText flattens HTML markup into plain text, inserting line breaks
// at <br> and at the end of block-level elements so that each form row
// lands on its own line.
func renderText(htmlBody string) string {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		// html.Parse is extremely tolerant; if it does fail, scan the raw
		// body instead of dropping the message.
		return htmlBody
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			case "br":
				b.WriteString("\n")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(doc)

	return b.String()
}
