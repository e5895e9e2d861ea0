package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// stream writes every published event as a server-sent event until the
// client goes away.
func (h *handlers) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, errors.New("streaming unsupported"))
		return
	}

	ch := h.events.Subscribe()
	defer h.events.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(NewEventView(msg.Event, msg.At))
			if err != nil {
				h.logger.Error("failed to encode event", "event", msg.Event.MessageName(), "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event.MessageName(), data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
