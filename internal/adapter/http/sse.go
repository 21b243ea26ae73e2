package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/vidq/internal/infrastructure/logger"
	"github.com/bnema/vidq/internal/service"
)

const keepAliveInterval = 15 * time.Second

type EventSource interface {
	Subscribe() chan service.Event
	Unsubscribe(ch chan service.Event)
}

type SSEHandler struct {
	events    EventSource
	keepAlive time.Duration
}

func NewSSEHandler(events EventSource) *SSEHandler {
	return &SSEHandler{
		events:    events,
		keepAlive: keepAliveInterval,
	}
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func sendEvent(w http.ResponseWriter, event service.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Debug.Printf("marshal event: %v", err)
		return
	}
	sseWrite(w, event.Type, string(data))
}

// Events streams change notifications until the client goes away or the
// bus drops the subscription.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		ch := h.events.Subscribe()
		defer h.events.Unsubscribe(ch)

		// Opening comment so clients see the stream before the first event.
		sendKeepAlive(w)

		ctx := r.Context()
		keepAlive := time.NewTicker(h.keepAlive)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				sendEvent(w, event)
			}
		}
	}
}
