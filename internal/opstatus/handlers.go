package opstatus

import (
	"encoding/json"
	"net/http"
)

const clientBufferSize = 64

// handleEvents upgrades the request into a long-lived Server-Sent-Events
// stream: an initial snapshot frame, then every broadcast event as it
// arrives, one "data: <json>\n\n" frame per event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := make(chan []byte, clientBufferSize)
	s.hub.register <- client
	defer func() { s.hub.unregister <- client }()

	initial := StreamEvent{Type: "snapshot", Data: BuildSnapshot(s.provider.GetStatus())}
	if data, err := json.Marshal(initial); err == nil {
		writeSSEFrame(w, data)
		flusher.Flush()
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case data, ok := <-client:
			if !ok {
				return
			}
			writeSSEFrame(w, data)
			flusher.Flush()
		}
	}
}

func writeSSEFrame(w http.ResponseWriter, data []byte) {
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
}
