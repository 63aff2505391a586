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

// Package extract pulls structured data out of warranty email bodies:
// the labeled form fields, the wrapped PDF link, and the real document
// URL hidden inside it.
package extract

import (
	"encoding/base64"
	"net/url"
	"regexp"
)

var (
	extPattern  = regexp.MustCompile(`ext=([^&]+)`)
	linkPattern = regexp.MustCompile(`link=(.+)`)
)

// ResolveWrappedLink decodes a tracking-wrapped redirect URL into the real
// document URL. The wrapper carries an `ext` parameter whose base64 value
// contains a `link=` segment with the percent-encoded target.
//
// Returns "" when the URL does not resolve — a missing parameter or a
// decode failure means "no document here", not an error.
func ResolveWrappedLink(raw string) string {
	m := extPattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}

	decoded, ok := decodeBase64(m[1])
	if !ok {
		return ""
	}

	lm := linkPattern.FindStringSubmatch(string(decoded))
	if lm == nil {
		return ""
	}

	target, err := url.PathUnescape(lm[1])
	if err != nil {
		return ""
	}
	return target
}

// decodeBase64 tolerates both the standard and URL-safe alphabets, with or
// without padding — wrappers emit all four variants.
func decodeBase64(s string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}
