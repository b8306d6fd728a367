package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/api"
	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/cloo-solutions/ticketassist/internal/events"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const defaultHeartbeat = 15 * time.Second

type TicketReader interface {
	Get(ctx context.Context, id string) (*domain.Ticket, error)
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, ticketID string) (<-chan events.TicketEvent, func(), error)
}

// EventsHandler streams ticket changes as server-sent events.
type EventsHandler struct {
	tickets   TicketReader
	sub       EventSubscriber
	heartbeat time.Duration
	logger    zerolog.Logger
}

func NewEventsHandler(tickets TicketReader, sub EventSubscriber, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{tickets: tickets, sub: sub, heartbeat: defaultHeartbeat, logger: logger}
}

// Stream sends the current ticket as a "snapshot" event, then one event per
// change until the client disconnects or the ticket is deleted.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	// Subscribe first so no change between the snapshot and the first event
	// is lost.
	ch, cancel, err := h.sub.Subscribe(ctx, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	defer cancel()

	ticket, err := h.tickets.Get(ctx, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", ticketToResponse(ticket)); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Warn().Err(err).Msg("response writer cannot stream events")
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, string(ev.Type), ev); err != nil {
				return
			}
			_ = rc.Flush()
			if ev.Type == events.TypeDeleted {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
