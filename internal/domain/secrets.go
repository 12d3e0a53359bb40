// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"net/url"
	"strings"
)

// RedactedStr replaces secrets in logs and errors.
const RedactedStr = "<redacted>"

// RedactString returns RedactedStr for any non-empty secret.
func RedactString(s string) string {
	if len(s) == 0 {
		return ""
	}

	return RedactedStr
}

// RedactURL hides the X-Plex-Token query parameter of rawURL.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := u.Query()
	changed := false
	for key := range q {
		if strings.EqualFold(key, "X-Plex-Token") {
			q.Set(key, RedactedStr)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}

	u.RawQuery = q.Encode()
	return u.String()
}
