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

package gmail

import (
	"encoding/base64"
	"strings"
)

// HTMLBody finds the first text/html part in the message's payload tree and
// returns its decoded content. The second return is false when the message
// carries no usable HTML part.
func HTMLBody(msg *Message) (string, bool) {
	part := findPart(&msg.Payload, "text/html")
	if part == nil || part.Body.Data == "" {
		return "", false
	}

	decoded, err := decodeBase64URL(part.Body.Data)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

// findPart walks the part tree depth-first for the first part with the
// given MIME type. Multipart containers nest the interesting part one or
// two levels down (multipart/alternative inside multipart/mixed).
func findPart(p *Part, mimeType string) *Part {
	if p.MimeType == mimeType {
		return p
	}
	for i := range p.Parts {
		if found := findPart(&p.Parts[i], mimeType); found != nil {
			return found
		}
	}
	return nil
}

// decodeBase64URL decodes Gmail body data, which is base64url encoded with
// or without padding depending on the producing client.
func decodeBase64URL(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}
