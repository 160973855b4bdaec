package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ledger/internal/ledger"
	"ledger/internal/log"
)

// handleStream pushes an "update" event with the current views on connect
// and after every change. Updates that arrive faster than the client reads
// collapse into the latest one.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx)

	pending := make(chan ledger.Update, 1)
	push := func(u ledger.Update) {
		for {
			select {
			case pending <- u:
				return
			default:
			}
			// Drop the stale update and retry with the newer one.
			select {
			case <-pending:
			default:
			}
		}
	}
	cancel := s.ledger.Watch(push)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, ledger.Update{Views: s.ledger.Views(), ListVersion: s.ledger.ListVersion()}); err != nil {
		return
	}
	flusher.Flush()
	logger.DebugContext(ctx, "event stream opened", log.FieldOperation, log.OpSubscribe)

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.DebugContext(ctx, "event stream closed by client")
			return
		case <-s.done:
			return
		case u := <-pending:
			if err := writeEvent(w, u); err != nil {
				logger.WarnContext(ctx, "event stream write failed", log.FieldError, err)
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, u ledger.Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: update\ndata: %s\n\n", data)
	return err
}
