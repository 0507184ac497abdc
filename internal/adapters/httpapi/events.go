package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/adapters/memorybus"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/app"
	"github.com/Guilhem-Bonnet/Anime-Tracker/internal/httpjson"
)

const sseHeartbeat = 15 * time.Second

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s sseWriter) send(event string, data []byte) {
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	s.flusher.Flush()
}

// handleEvents relaie en SSE les changements de titres et de session de
// l'utilisateur connecté.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	session, ok := mustSession(w, r)
	if !ok {
		return
	}
	if s.bus == nil {
		httpjson.WriteCodedError(w, http.StatusServiceUnavailable, app.CodeUnavailable, "events unavailable")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpjson.WriteCodedError(w, http.StatusInternalServerError, app.CodeStoreFailure, "streaming unsupported")
		return
	}

	events, unsubscribe := s.bus.Subscribe(memorybus.ForUser(session.UserID))
	defer unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	out := sseWriter{w: w, flusher: flusher}
	out.send("hello", []byte(`{"status":"connected"}`))

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case evt, open := <-events:
			if !open {
				// bus fermé : arrêt du serveur
				return
			}
			out.send(evt.Topic, evt.Payload)
		case <-heartbeat.C:
			out.send("ping", []byte("{}"))
		case <-r.Context().Done():
			return
		}
	}
}
