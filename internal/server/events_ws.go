package server

import (
	"net/http"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Cloud956/wheel-tracker/internal/events"
)

type eventHandlers struct {
	bus *events.Bus
	log zerolog.Logger
}

func newEventHandlers(bus *events.Bus, log zerolog.Logger) *eventHandlers {
	return &eventHandlers{
		bus: bus,
		log: log.With().Str("handler", "events").Logger(),
	}
}

// HandleEventStream upgrades to a websocket and streams bus events until the
// client disconnects. GET /api/events/ws
func (h *eventHandlers) HandleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-origin policy handled by CORS middleware
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	id, ch := h.bus.Subscribe()
	defer h.bus.Unsubscribe(id)

	h.log.Debug().Int("subscriber", id).Msg("Event stream opened")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				h.log.Debug().Int("subscriber", id).Err(err).Msg("Event stream write failed, closing")
				return
			}
		}
	}
}
