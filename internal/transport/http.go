// Package transport adapts the teacher's pooled HTTP client and socket.io
// event-sink assets (modules/http_client, modules/socketio_client) into the
// runtime's two outbound collaborators: the synchronization HTTP API and
// the live event sink the logger's event queue drains into.
package transport

import (
	"net/http"
	"time"

	resty "resty.dev/v3"
)

// HTTPOptions configures NewHTTPClient. The field names mirror the teacher's
// http_client.AssetInput / *http.Transport knobs.
type HTTPOptions struct {
	BaseURL             string
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// NewHTTPClient builds a pooled resty.Client for the synchronization API.
// Connection pooling knobs match the teacher's createHttpClient; unlike the
// teacher's asset, retry is intentionally left to the caller (the uploader
// drives its own 5-attempt/200ms/1.05-factor loop rather than resty's
// built-in retry, to preserve those numbers exactly).
func NewHTTPClient(opts HTTPOptions) *resty.Client {
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 100
	}
	maxIdlePerHost := opts.MaxIdleConnsPerHost
	if maxIdlePerHost <= 0 {
		maxIdlePerHost = 10
	}
	idleTimeout := opts.IdleConnTimeout
	if idleTimeout <= 0 {
		idleTimeout = 90 * time.Second
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTransport(&http.Transport{
			MaxIdleConns:        maxIdle,
			MaxIdleConnsPerHost: maxIdlePerHost,
			IdleConnTimeout:     idleTimeout,
		})
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	return client
}
