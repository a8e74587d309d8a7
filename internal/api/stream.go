package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"paperchat/internal/answer"
	"paperchat/internal/chat"
)

// handleChatStream answers as Server-Sent Events. Failures before the first event are
// plain JSON errors; after that they arrive as an error event followed by done.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeErr(w, fmt.Errorf("response writer does not support streaming"))
		return
	}
	var req chat.Request
	if err := decodeJSON(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}
	events, err := s.chat.AskStream(r.Context(), req)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		if err := writeEvent(w, ev); err != nil {
			s.logger.Warn("stream write failed", "err", err)
			// draining lets the producer observe the canceled request context and exit
			for range events {
			}
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, ev answer.Event) error {
	var payload any
	switch ev.Type {
	case answer.EventSources:
		payload = map[string]any{"sources": ev.Sources}
	case answer.EventContent:
		payload = map[string]any{"content": ev.Content}
	case answer.EventError:
		_, apiErr := toAPIError(ev.Err)
		payload = apiErr
	default:
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
