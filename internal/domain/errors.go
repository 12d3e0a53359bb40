// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "errors"

var (
	// ErrUpstream marks HTTP, transport or decoding failures talking to a media server.
	// Jobs failing with it are retried by the queue.
	ErrUpstream = errors.New("upstream error")

	// ErrPartialData marks a media item missing required fields. The item is
	// skipped; it never fails a job.
	ErrPartialData = errors.New("partial media data")

	// ErrCacheUnavailable marks a failed cache store operation. Jobs failing
	// with it are retried like upstream errors.
	ErrCacheUnavailable = errors.New("cache unavailable")
)
