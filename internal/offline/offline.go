// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrNonLocalhost is returned for a remote endpoint in local-only mode.
	ErrNonLocalhost = errors.New("endpoint is not on localhost")

	// ErrInvalidURLScheme is returned for endpoints that are not http or https.
	ErrInvalidURLScheme = errors.New("endpoint must use http or https")
)

// IsLocalhost reports whether host (optionally with a port) names the
// loopback interface.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ValidateEndpoint checks that rawURL is an http(s) URL and, when localOnly
// is set, that it points at the loopback interface. Empty endpoints are
// accepted; adapters fall back to their defaults.
func ValidateEndpoint(rawURL string, localOnly bool) error {
	if rawURL == "" {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrInvalidURLScheme, rawURL)
	}
	if localOnly && !IsLocalhost(u.Host) {
		return fmt.Errorf("%w: %s", ErrNonLocalhost, u.Host)
	}
	return nil
}

// ValidateEndpoints runs ValidateEndpoint over each endpoint and returns the
// first failure.
func ValidateEndpoints(localOnly bool, endpoints ...string) error {
	for _, ep := range endpoints {
		if err := ValidateEndpoint(ep, localOnly); err != nil {
			return err
		}
	}
	return nil
}
