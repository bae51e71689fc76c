package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"automatch/internal/metrics"

	"github.com/gorilla/websocket"
)

// BalanceUpdate is pushed to a dealer's sockets after each committed posting.
type BalanceUpdate struct {
	DealerID string `json:"dealer_id"`
	Credits  int64  `json:"credits"`
	Reason   string `json:"reason"`
}

// Hub fans balance updates out to every socket a dealer has open.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	upgrader websocket.Upgrader
}

// NewHub accepts handshakes from the given origins. No origins, or "*",
// accepts any.
func NewHub(allowedOrigins ...string) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		if origin != "" {
			set[origin] = struct{}{}
		}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *Hub) Register(dealerID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[dealerID] == nil {
		h.clients[dealerID] = make(map[*Client]struct{})
	}
	if _, ok := h.clients[dealerID][client]; ok {
		return
	}
	h.clients[dealerID][client] = struct{}{}
	metrics.AddWSConnections(1)
}

// Unregister is safe to call more than once for the same client; both pumps
// call it on exit.
func (h *Hub) Unregister(dealerID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sockets := h.clients[dealerID]
	if _, ok := sockets[client]; !ok {
		return
	}
	delete(sockets, client)
	metrics.AddWSConnections(-1)
	if len(sockets) == 0 {
		delete(h.clients, dealerID)
	}
}

func (h *Hub) BroadcastBalance(dealerID string, update BalanceUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[dealerID] {
		select {
		case client.send <- payload:
		default:
			// slow reader; it resyncs from GET /dealer/balance
		}
	}
}

func (h *Hub) ConnectionCount(dealerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[dealerID])
}
