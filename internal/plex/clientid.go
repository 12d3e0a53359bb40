// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package plex

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/keygen-sh/machineid"
	"github.com/rs/zerolog/log"
)

const clientIDLength = 24

// ClientIdentifier returns a stable X-Plex-Client-Identifier for this host.
// Inside containers the machine id is not stable, so an id persisted in
// dataDir is preferred when one exists or can be written.
func ClientIdentifier(appID, dataDir string) string {
	if isRunningInContainer() && dataDir != "" {
		if id := persistentID(filepath.Join(dataDir, ".client-id")); id != "" {
			return hashID(appID + "-" + id)
		}
	}

	id, err := machineid.ProtectedID(appID)
	if err != nil {
		log.Warn().Err(err).Msg("plex: machine id unavailable, using a random client identifier")
		return randomID()
	}
	return id[:clientIDLength]
}

func isRunningInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	return strings.Contains(os.Getenv("container"), "podman")
}

func persistentID(path string) string {
	if content, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(content)); id != "" {
			return id
		}
	}

	id := randomID()
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("plex: could not persist client identifier")
		return ""
	}
	return id
}

func hashID(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))[:clientIDLength]
}

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomID() string {
	b := make([]byte, clientIDLength)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = idAlphabet[int(b[i])%len(idAlphabet)]
	}
	return string(b)
}
