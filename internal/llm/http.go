// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// MaxErrorBodySize bounds how much of a failed response body is kept.
const MaxErrorBodySize = 64 * 1024

// sharedStreamingClient has no overall timeout; streams are bounded by their
// context. Connection setup is still bounded by the transport timeouts.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 2 * time.Minute,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

// Transport sends provider requests and maps transport and status failures
// onto ClientError and StatusError.
type Transport struct {
	Client   *http.Client
	Logger   *slog.Logger
	Defaults Defaults
}

// NewTransport fills nil fields with the shared client and slog.Default.
func NewTransport(client *http.Client, logger *slog.Logger, defaults Defaults) *Transport {
	if client == nil {
		client = sharedStreamingClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{Client: client, Logger: logger, Defaults: defaults.WithFallbacks()}
}

// Post encodes body as JSON, posts it to endpoint with header and returns
// the response of a 2xx status. The caller closes the body.
func (t *Transport) Post(ctx context.Context, provider string, purpose Purpose, endpoint string, body any, header http.Header) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	t.Logger.Debug("ai request",
		"provider", provider,
		"purpose", purpose.String(),
		"endpoint", redactEndpoint(endpoint),
		"bytes", len(payload))
	if t.Defaults.DebugPayloads {
		t.Logger.Debug("ai request payload", "provider", provider, "body", string(payload))
	}

	start := time.Now()
	resp, err := t.Client.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, ErrCancelled
		case errors.Is(err, context.DeadlineExceeded):
			return nil, &ClientError{Type: ErrTypeConnection, Message: "request timed out", Cause: err}
		default:
			return nil, &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
		}
	}

	t.Logger.Debug("ai response",
		"provider", provider,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	return resp, nil
}

// redactEndpoint drops credentials and the query string from an endpoint
// before it is logged.
func redactEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "invalid-url"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}

// Header builds the request header of cfg: extra configured headers plus
// the given auth pairs, which take precedence.
func Header(cfg ProviderConfig, auth ...string) http.Header {
	h := make(http.Header)
	for k, v := range cfg.Headers {
		h.Set(k, v)
	}
	for i := 0; i+1 < len(auth); i += 2 {
		if auth[i+1] != "" {
			h.Set(auth[i], auth[i+1])
		}
	}
	return h
}
