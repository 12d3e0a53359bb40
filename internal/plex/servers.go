// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package plex

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/plexreshare/internal/domain"
)

const directSuffix = "plex.direct"

// Resolver looks up the addresses of a host name. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type hostResolver struct {
	resolver Resolver
	attempts uint
	delay    time.Duration
}

func newHostResolver(r Resolver) *hostResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &hostResolver{resolver: r, attempts: 3, delay: time.Second}
}

// ipv4 resolves host to its first IPv4 address.
func (h *hostResolver) ipv4(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		return ip.String(), nil
	}

	var found string
	err := retry.Do(
		func() error {
			addrs, err := h.resolver.LookupHost(ctx, host)
			if err != nil {
				return err
			}
			for _, addr := range addrs {
				if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
					found = ip.String()
					return nil
				}
			}
			return retry.Unrecoverable(fmt.Errorf("no ipv4 address for %s", host))
		},
		retry.Context(ctx),
		retry.Attempts(h.attempts),
		retry.Delay(h.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", host)
	}
	return found, nil
}

// Servers lists the media servers shared with the account, one per client
// identifier, each with a public plex.direct endpoint.
func (c *Client) Servers(ctx context.Context) ([]domain.Server, error) {
	resources, err := c.Resources(ctx)
	if err != nil {
		return nil, err
	}
	return selectServers(ctx, resources, c.resolver), nil
}

func selectServers(ctx context.Context, resources []Resource, resolver *hostResolver) []domain.Server {
	servers := make([]domain.Server, 0, len(resources))
	seen := make(map[string]int, len(resources))

	for _, res := range resources {
		if !res.IsServer() {
			continue
		}

		var chosen *domain.Server
		for _, conn := range res.Connections {
			if !conn.Public() {
				continue
			}

			hostPort, custom, err := directEndpoint(ctx, conn, res.Connections, resolver)
			if err != nil {
				log.Warn().Err(err).Str("server", res.Name).Msg("plex: skipping connection")
				continue
			}

			srv, ok := serverFromEndpoint(hostPort, conn.Port, res)
			if !ok {
				log.Debug().Str("server", res.Name).Str("uri", conn.URI).Msg("plex: connection has no node")
				continue
			}
			if chosen == nil || custom {
				chosen = &srv
			}
		}

		if chosen == nil {
			log.Debug().Str("server", res.Name).Msg("plex: no usable connection")
			continue
		}

		if i, ok := seen[res.ClientIdentifier]; ok {
			servers[i] = *chosen
			continue
		}
		seen[res.ClientIdentifier] = len(servers)
		servers = append(servers, *chosen)
	}

	return servers
}

// directEndpoint returns host:port of conn in plex.direct form. A custom
// endpoint is resolved and rewritten using the node of a plex.direct sibling.
func directEndpoint(ctx context.Context, conn Connection, siblings []Connection, resolver *hostResolver) (string, bool, error) {
	if strings.Contains(conn.URI, directSuffix) {
		return stripScheme(conn.URI), false, nil
	}

	var node string
	for _, s := range siblings {
		if strings.Contains(s.URI, directSuffix) {
			node = nodeOf(stripScheme(s.URI))
			break
		}
	}
	if node == "" {
		return "", true, fmt.Errorf("custom endpoint %s has no plex.direct sibling", conn.URI)
	}

	u, err := url.Parse(conn.URI)
	if err != nil || u.Hostname() == "" {
		return "", true, fmt.Errorf("invalid connection uri %q", conn.URI)
	}

	ip, err := resolver.ipv4(ctx, u.Hostname())
	if err != nil {
		return "", true, err
	}

	return fmt.Sprintf("%s.%s.%s:%d", strings.ReplaceAll(ip, ".", "-"), node, directSuffix, conn.Port), true, nil
}

func serverFromEndpoint(hostPort string, port int, res Resource) (domain.Server, bool) {
	labels := strings.Split(hostPort, ".")
	if len(labels) < 2 || labels[0] == "" || labels[1] == "" {
		return domain.Server{}, false
	}

	if port == 0 {
		if _, p, err := net.SplitHostPort(hostPort); err == nil {
			port, _ = strconv.Atoi(p)
		}
	}

	return domain.Server{
		Node:        labels[1],
		URI:         hostPort,
		IP:          strings.ReplaceAll(labels[0], "-", "."),
		Port:        port,
		AccessToken: res.AccessToken,
		Owned:       res.Owned,
	}, true
}

func stripScheme(uri string) string {
	if i := strings.Index(uri, "://"); i >= 0 {
		return uri[i+3:]
	}
	return uri
}

func nodeOf(hostPort string) string {
	labels := strings.Split(hostPort, ".")
	if len(labels) < 2 {
		return ""
	}
	return labels[1]
}
