package server

import (
	"net/http"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/lookout/internal/events"
	"github.com/aristath/lookout/internal/settings"
)

// eventsStreamHandler streams engine events to UI clients over a
// websocket. The stream respects the enable_notifications setting: while
// notifications are off, events are consumed but not forwarded, so a
// re-enable resumes the stream without reconnecting.
type eventsStreamHandler struct {
	bus      *events.Bus
	settings *settings.Service
	log      zerolog.Logger
}

func newEventsStreamHandler(bus *events.Bus, svc *settings.Service, log zerolog.Logger) *eventsStreamHandler {
	return &eventsStreamHandler{
		bus:      bus,
		settings: svc,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events (websocket upgrade).
func (h *eventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The API already allows any origin via CORS middleware.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// CloseRead cancels the context when the client disconnects; the
	// stream is write-only from our side.
	ctx := conn.CloseRead(r.Context())

	ch, cancel := h.bus.Subscribe()
	defer cancel()

	h.log.Debug().Msg("Events stream connected")

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Events stream disconnected")
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if !h.settings.NotificationsEnabled() {
				continue
			}
			if err := wsjson.Write(ctx, conn, evt); err != nil {
				h.log.Debug().Err(err).Msg("Events stream write failed")
				return
			}
		}
	}
}
