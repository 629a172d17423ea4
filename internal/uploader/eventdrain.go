package uploader

import "context"

// drainEvents empties the event bus, forwarding each event to the
// configured sink (or discarding it, counted, if none is configured).
// Finalize blocks on this returning, satisfying "event queue drain is
// guaranteed before finalize returns" (spec.md §5).
func (u *Uploader) drainEvents(ctx context.Context) {
	if u.events == nil {
		return
	}

	discarded := 0
	for {
		if ctx.Err() != nil {
			return
		}
		events := u.events.Drain()
		if len(events) == 0 {
			if discarded > 0 {
				u.logger.Debug("drained events with no sink configured", "count", discarded)
			}
			return
		}
		for _, ev := range events {
			if u.sink == nil {
				discarded++
				continue
			}
			if err := u.sink.Emit(ev.Name, ev.Payload); err != nil {
				u.logger.Warn("failed to forward event to sink", "event", ev.Name, "error", err)
			}
		}
	}
}
