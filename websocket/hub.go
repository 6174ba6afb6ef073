// Package websocket pushes ledger events to the live clients of a business.
package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/anjiri1684/fee_ledger/services"
	"github.com/google/uuid"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	BusinessID uuid.UUID
	Conn       Conn
}

// Hub fans events out to the clients subscribed to the event's business.
// It implements services.Publisher.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan services.Event
	done       chan struct{}

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}
}

func NewHub(buffer int) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan services.Event, buffer),
		done:       make(chan struct{}),
		clients:    map[uuid.UUID]map[*Client]struct{}{},
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues e without blocking; when the queue is full the event is
// dropped, since ledger state never depends on it.
func (h *Hub) Publish(e services.Event) {
	select {
	case h.broadcast <- e:
	default:
		log.Printf("Websocket hub queue full, dropping %s event for business %s", e.Type, e.BusinessID)
	}
}

func (h *Hub) ClientCount(businessID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[businessID])
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.BusinessID] == nil {
				h.clients[client.BusinessID] = map[*Client]struct{}{}
			}
			h.clients[client.BusinessID][client] = struct{}{}
			h.mu.Unlock()
			log.Printf("Client registered for business %s", client.BusinessID)
		case client := <-h.unregister:
			h.remove(client)
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(e services.Event) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[e.BusinessID]))
	for c := range h.clients[e.BusinessID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Conn.WriteJSON(e); err != nil {
			log.Printf("Error sending %s event to client of business %s: %v", e.Type, e.BusinessID, err)
			_ = c.Conn.Close()
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.BusinessID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.BusinessID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for biz, set := range h.clients {
		for c := range set {
			_ = c.Conn.Close()
		}
		delete(h.clients, biz)
	}
}
