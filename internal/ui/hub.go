// Package ui streams worker status and log events to dashboard clients over
// websockets. The hub is a fire-and-forget sink: workers never block on it,
// slow clients miss events instead of slowing the crew down.
package ui

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"botcrew.ai/internal/bot"
)

const (
	EventBotChanged = "bot_changed"
	EventLog        = "log"
)

// Event is the wire format for dashboard pushes.
type Event struct {
	Type string         `json:"type"`
	TS   time.Time      `json:"ts"`
	Bot  *bot.BotStatus `json:"bot,omitempty"`
	Log  *LogEvent      `json:"log,omitempty"`
}

type LogEvent struct {
	Bot     string `json:"bot"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type client struct {
	out chan []byte
}

// Hub implements bot.StatusSink and serves the dashboard websocket. New
// clients get a replay of the last known status of every bot.
type Hub struct {
	log      *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	bots    map[string]bot.BotStatus
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		clients: map[*client]struct{}{},
		bots:    map[string]bot.BotStatus{},
	}
}

var _ bot.StatusSink = (*Hub)(nil)

func (h *Hub) BotChanged(s bot.BotStatus) {
	h.mu.Lock()
	h.bots[s.Name] = s
	h.mu.Unlock()
	h.broadcast(Event{Type: EventBotChanged, TS: time.Now(), Bot: &s})
}

func (h *Hub) BotLog(name, level, message string) {
	h.broadcast(Event{Type: EventLog, TS: time.Now(), Log: &LogEvent{Bot: name, Level: level, Message: message}})
}

func (h *Hub) broadcast(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- b:
		default:
			// Slow client; drop the event rather than block a worker.
		}
	}
}

// Handler upgrades the connection and streams events until the client goes
// away. Inbound messages are ignored; the dashboard is read-only.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := &client{out: make(chan []byte, 64)}
		h.register(c)
		defer h.unregister(c)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for b := range c.out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		// Closing the out channel ends the writer.
		h.unregister(c)
		<-done
	}
}

// register adds the client and queues a status replay so a fresh dashboard
// sees the whole crew immediately.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.bots))
	for name := range h.bots {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := h.bots[name]
		b, err := json.Marshal(Event{Type: EventBotChanged, TS: time.Now(), Bot: &s})
		if err != nil {
			continue
		}
		select {
		case c.out <- b:
		default:
			// Crew larger than the client buffer; the live stream fills in
			// the rest. Blocking here would hold the hub lock against every
			// worker.
		}
	}
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.out)
	}
}

// ClientCount reports connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
