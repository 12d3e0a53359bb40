// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package plex

import (
	"fmt"

	"github.com/autobrr/plexreshare/internal/domain"
)

// UpstreamError describes a failed request to plex.tv or a media server.
// It matches domain.ErrUpstream with errors.Is.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	return []error{domain.ErrUpstream, e.Err}
}

func upstreamErr(endpoint string, status int, err error) error {
	return &UpstreamError{Endpoint: domain.RedactURL(endpoint), StatusCode: status, Err: err}
}
