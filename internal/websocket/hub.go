package websocket

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/metrics"
	"kepler-sentinel-go/internal/models"
)

const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is the envelope written to dashboard clients
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans bus events out to connected dashboard clients.
// It is an event bus consumer and runs as a supervised service.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Name identifies the hub on the event bus
func (h *Hub) Name() string { return "websocket" }

// Deliver queues ev for broadcast. It fails when the hub does not accept the
// message within writeWait, so the bus retries and eventually counts a failure.
func (h *Hub) Deliver(ctx context.Context, ev models.Event) error {
	msg := Message{Type: string(ev.Type), Data: ev}
	timer := time.NewTimer(writeWait)
	defer timer.Stop()

	select {
	case h.broadcast <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("websocket broadcast queue full, dropping %s event", ev.Type)
	}
}

// Serve runs the hub loop until ctx is done, then closes every client
func (h *Hub) Serve(ctx context.Context) error {
	log.Info().Str("component", "websocket-hub").Msg("WebSocket hub started")
	for {
		select {
		case <-ctx.Done():
			n := h.ClientCount()
			h.closeAllClients()
			log.Info().
				Str("component", "websocket-hub").
				Int("clients_closed", n).
				Msg("WebSocket hub stopped")
			return ctx.Err()

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnections.Inc()
			log.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) String() string {
	return "websocket-hub"
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		metrics.WSConnections.Dec()
		log.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("WebSocket client disconnected")
	}
}

func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// deterministic order for tests and logs
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var slow []*Client
	for _, client := range clients {
		if !client.wants(message.Type) {
			continue
		}
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			slow = append(slow, client)
		}
	}

	// a client that cannot keep up is disconnected, never waited for
	for _, client := range slow {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
		log.Warn().Uint64("client_id", client.id).Msg("Disconnecting slow WebSocket client")
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
	}
}
