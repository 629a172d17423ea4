package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// EventSinkOptions configures NewEventSink. Mirrors the teacher's
// socketio_client.Input.
type EventSinkOptions struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
}

// EventSink is a live socket.io connection the uploader's event drain
// (internal/uploader/eventdrain.go) forwards logger events over before
// finalize, per spec.md §4.6 "Event publishing."
type EventSink struct {
	socket *socket.Socket
}

// Connect establishes a socket.io connection, pinning the WebSocket
// transport the way the teacher's CreateSocketIOClient does — the other
// transports (webtransport, polling) are declared dependencies of the
// socket.io client stack but never selected here.
func Connect(ctx context.Context, opts EventSinkOptions) (*EventSink, error) {
	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("transport: parsing event sink URL: %w", err)
	}

	sockOpts := socket.DefaultOptions()
	sockOpts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(opts.Namespace, sockOpts)

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) { connectChan <- nil })
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				connectChan <- err
				return
			}
		}
		connectChan <- fmt.Errorf("transport: connect_error event with no error payload")
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("transport: event sink connection failed: %w", err)
		}
		return &EventSink{socket: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, ctx.Err()
	case <-time.After(15 * time.Second):
		io.Disconnect()
		return nil, fmt.Errorf("transport: timed out after 15s waiting for event sink connection")
	}
}

// Emit forwards a single logger event over the socket.io connection.
func (s *EventSink) Emit(eventName string, payload any) error {
	return s.socket.Emit(eventName, payload)
}

// Close disconnects the underlying socket.
func (s *EventSink) Close() error {
	s.socket.Disconnect()
	return nil
}
