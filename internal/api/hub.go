package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Message is the envelope written to stream subscribers.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type subscriber struct {
	hub        *Hub
	simulation int
	conn       *websocket.Conn
	send       chan []byte
}

type publication struct {
	simulation int
	raw        []byte
}

// Hub fans simulation updates out to websocket subscribers. Each
// subscriber listens to exactly one simulation.
type Hub struct {
	log  *slog.Logger
	done chan struct{}

	subs       map[int]map[*subscriber]struct{}
	register   chan *subscriber
	unregister chan *subscriber
	publish    chan publication
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:        logger,
		done:       make(chan struct{}),
		subs:       make(map[int]map[*subscriber]struct{}),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		publish:    make(chan publication, 256),
	}
}

// Run owns the subscriber set until ctx is done. It must be called once.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.subs {
				for s := range set {
					close(s.send)
				}
			}
			h.subs = make(map[int]map[*subscriber]struct{})
			return nil

		case s := <-h.register:
			set := h.subs[s.simulation]
			if set == nil {
				set = make(map[*subscriber]struct{})
				h.subs[s.simulation] = set
			}
			set[s] = struct{}{}
			h.log.Debug("stream subscriber registered", "simulation", s.simulation, "subscribers", len(set))

		case s := <-h.unregister:
			h.drop(s)

		case p := <-h.publish:
			for s := range h.subs[p.simulation] {
				select {
				case s.send <- p.raw:
				default:
					// Slow reader: drop it rather than stall every other subscriber.
					h.drop(s)
				}
			}
		}
	}
}

func (h *Hub) drop(s *subscriber) {
	set := h.subs[s.simulation]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.send)
	if len(set) == 0 {
		delete(h.subs, s.simulation)
	}
}

// Publish queues msg for subscribers of simulation. It never blocks; when
// the queue is full the update is dropped and the next one supersedes it.
func (h *Hub) Publish(simulation int, msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal stream message", "err", err)
		return
	}
	select {
	case h.publish <- publication{simulation: simulation, raw: raw}:
	default:
		h.log.Warn("stream publish queue full", "simulation", simulation)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Serve upgrades the request and subscribes it to simulation. initial, if
// non-nil, is written before any published update.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, simulation int, initial *Message) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	s := &subscriber{hub: h, simulation: simulation, conn: conn, send: make(chan []byte, 16)}
	if initial != nil {
		if raw, err := json.Marshal(initial); err == nil {
			s.send <- raw
		}
	}
	select {
	case h.register <- s:
	case <-h.done:
		conn.Close()
		return
	}
	go s.writePump()
	go s.readPump()
}

// readPump only watches for the peer going away; clients do not send data.
func (s *subscriber) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.hub.log.Debug("stream read failed", "simulation", s.simulation, "err", err)
			}
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
