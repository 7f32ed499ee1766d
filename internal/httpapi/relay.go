package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"twin_gateway/internal/models"
	"twin_gateway/internal/tools"
)

// doneSentinel is the literal final frame of every stream.
const doneSentinel = "[DONE]"

// relayStream forwards generation events to the client as server-sent
// events and returns the history status for the request. The stream always
// terminates with the [DONE] sentinel unless the client went away first.
func (d *Dependencies) relayStream(w http.ResponseWriter, r *http.Request, events <-chan tools.Event) string {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return models.StatusError
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	idle := time.NewTimer(d.Cfg.Stream.IdleTimeout)
	defer idle.Stop()
	keepAlive := time.NewTicker(d.Cfg.Stream.KeepAliveInterval)
	defer keepAlive.Stop()

	status := models.StatusOK
	for {
		select {
		case <-r.Context().Done():
			// Client disconnected, nothing left to write to.
			return models.StatusError

		case <-idle.C:
			slog.Warn("stream idle timeout, forcing termination")
			writeSSEFrame(w, doneSentinel)
			flusher.Flush()
			return models.StatusError

		case <-keepAlive.C:
			// Comment frame, ignored by SSE consumers.
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case ev, open := <-events:
			if !open {
				writeSSEFrame(w, doneSentinel)
				flusher.Flush()
				return status
			}
			if ev.Err != nil {
				slog.Error("stream failed mid-flight", "error", ev.Err)
				writeSSEFrame(w, doneSentinel)
				flusher.Flush()
				return models.StatusError
			}

			writeSSEFrame(w, formatEvent(ev))
			flusher.Flush()

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.Cfg.Stream.IdleTimeout)
		}
	}
}

// formatEvent renders an interceptor event as the wire text of one frame.
// Tool activity uses bracketed markers so clients can present it distinctly.
func formatEvent(ev tools.Event) string {
	switch ev.Kind {
	case tools.EventToolCall:
		return "[TOOL_CALL] " + ev.Tool
	case tools.EventToolResultBegin:
		return "[TOOL_RESULT_BEGIN] " + ev.Tool
	case tools.EventToolResultEnd:
		return "[TOOL_RESULT_END] " + ev.Tool
	default:
		return ev.Text
	}
}

// writeSSEFrame emits one event. Multi-line payloads become multiple data
// lines of the same frame, per the SSE format.
func writeSSEFrame(w http.ResponseWriter, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
