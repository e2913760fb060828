package gridplan

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// cellEvent is broadcast to every websocket subscriber after a successful
// write batch, so open grids can refresh the affected module.
type cellEvent struct {
	Type        string `json:"type"`
	EngineID    string `json:"engineId"`
	WorkspaceID string `json:"workspaceId"`
	ModuleID    string `json:"moduleId"`
	Version     string `json:"version"`
	Cells       int    `json:"cells"`
	At          string `json:"at"`
}

// eventHub fans cell events out to websocket subscribers. Slow subscribers
// are dropped rather than blocking the write path.
type eventHub struct {
	log        zerolog.Logger
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	events     chan cellEvent
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func newEventHub(log zerolog.Logger) *eventHub {
	return &eventHub{
		log:        log.With().Str("component", "events").Logger(),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		events:     make(chan cellEvent, 64),
	}
}

// run owns the subscriber set; all membership changes and sends happen on
// this goroutine.
func (h *eventHub) run(ctx context.Context) {
	subscribers := map[*websocket.Conn]bool{}
	defer func() {
		for conn := range subscribers {
			_ = conn.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-h.register:
			subscribers[conn] = true
			h.log.Debug().Int("subscribers", len(subscribers)).Msg("subscriber joined")
		case conn := <-h.unregister:
			if subscribers[conn] {
				delete(subscribers, conn)
				_ = conn.Close()
			}
		case event := <-h.events:
			for conn := range subscribers {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(event); err != nil {
					delete(subscribers, conn)
					_ = conn.Close()
				}
			}
		}
	}
}

// broadcast queues an event without blocking: if the hub is backed up the
// event is dropped, the grid will catch up on its next read.
func (h *eventHub) broadcast(event cellEvent) {
	event.Type = "cellsWritten"
	event.At = time.Now().UTC().Format(time.RFC3339)
	select {
	case h.events <- event:
	default:
		h.log.Warn().Msg("event dropped, hub backed up")
	}
}

// handleEvents upgrades the connection and parks it in the hub. The read
// loop exists only to notice the peer going away.
func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	a.hub.register <- conn

	go func() {
		defer func() { a.hub.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
