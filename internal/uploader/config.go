package uploader

import (
	"context"
	"fmt"
	"time"

	"github.com/j1-labs/j1-integration-runtime/internal/execconfig"
	"github.com/j1-labs/j1-integration-runtime/internal/runlog"
	"github.com/j1-labs/j1-integration-runtime/internal/transport"
)

// Config configures NewFromConfig: the real synchronization API client and,
// optionally, a live event sink (SPEC_FULL.md §4.9).
type Config struct {
	Root    string
	BaseURL string
	Timeout time.Duration

	// EventSinkURL, when non-empty, is dialed as a socket.io connection that
	// drainEvents forwards logger events over. Left empty, drained events
	// are discarded and only counted (see eventdrain.go).
	EventSinkURL                string
	EventSinkNamespace          string
	EventSinkInsecureSkipVerify bool

	Logger    *runlog.Logger
	Events    *runlog.EventBus
	Overrides map[string]execconfig.StepExecutionOverride
}

// NewFromConfig builds an Uploader wired to a pooled resty client
// (internal/transport.NewHTTPClient) and, when cfg.EventSinkURL is set, a
// live socket.io event sink (internal/transport.Connect).
func NewFromConfig(ctx context.Context, cfg Config) (*Uploader, error) {
	client := transport.NewHTTPClient(transport.HTTPOptions{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})

	var sink EventSink
	if cfg.EventSinkURL != "" {
		connected, err := transport.Connect(ctx, transport.EventSinkOptions{
			URL:                cfg.EventSinkURL,
			Namespace:          cfg.EventSinkNamespace,
			InsecureSkipVerify: cfg.EventSinkInsecureSkipVerify,
		})
		if err != nil {
			return nil, fmt.Errorf("uploader: connecting event sink: %w", err)
		}
		sink = connected
	}

	return New(Options{
		Client:    client,
		Root:      cfg.Root,
		Logger:    cfg.Logger,
		Events:    cfg.Events,
		Sink:      sink,
		Overrides: cfg.Overrides,
	}), nil
}
