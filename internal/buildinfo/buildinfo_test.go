// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	prevVersion, prevCommit, prevDate := Version, Commit, Date
	Version, Commit, Date = version, commit, date
	t.Cleanup(func() { Version, Commit, Date = prevVersion, prevCommit, prevDate })
}

func TestUserAgentNamesPlatform(t *testing.T) {
	assert.Equal(t, "plexreshare/dev ("+runtime.GOOS+" "+runtime.GOARCH+")", UserAgent)
}

func TestString(t *testing.T) {
	withBuild(t, "v1.2.0", "abc1234", "2026-01-02")

	assert.Equal(t, "Version: v1.2.0\nCommit: abc1234\nBuild date: 2026-01-02\n", String())
}

func TestJSON(t *testing.T) {
	withBuild(t, "v1.2.0", "", "")

	data, err := JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"v1.2.0","commit":"","date":""}`, string(data))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 3)
}
