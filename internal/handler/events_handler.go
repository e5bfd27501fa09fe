package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go-art-session/internal/event"
	"go-art-session/internal/model"
)

type snapshotSource interface {
	Session() model.Session
}

// EventsHandler streams session transitions as server-sent events.
type EventsHandler struct {
	bus       event.Bus
	sessions  snapshotSource
	heartbeat time.Duration
	logger    *slog.Logger
}

func NewEventsHandler(bus event.Bus, sessions snapshotSource, heartbeat time.Duration, logger *slog.Logger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{bus: bus, sessions: sessions, heartbeat: heartbeat, logger: logger}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Subscribe before the snapshot so no transition falls between them.
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	w.WriteHeader(http.StatusOK)
	snapshot := event.New(event.TypeSnapshot, h.sessions.Session(), "")
	if err := writeEvent(w, snapshot); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(r.Context(), "event stream cannot flush", "error", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, e event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
	return err
}
