// WebSocket hub for broadcasting recovery events to off-chain indexers
// and keeper bots.
package engine

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stablemint/recovery-engine/internal/metrics"
)

// Event types broadcast over the hub.
const (
	EventAuctionCreated      = "auction_created"
	EventAuctionSettled      = "auction_settled"
	EventAuctionCleaned      = "auction_cleaned"
	EventBidCommitted        = "bid_committed"
	EventLiquidationExecuted = "liquidation_executed"
	EventConfigUpdated       = "config_updated"
	EventMevDefense          = "mev_defense"
)

// WSMessage is a JSON event sent to WebSocket clients. Numeric fields are
// strings to keep exact decimal representation on the wire.
type WSMessage struct {
	Type           string `json:"type"`
	AuctionID      uint64 `json:"auction_id,omitempty"`
	User           string `json:"user,omitempty"`
	Token          string `json:"token,omitempty"`
	Actor          string `json:"actor,omitempty"`
	Price          string `json:"price,omitempty"`
	Amount         string `json:"amount,omitempty"`
	Bonus          string `json:"bonus,omitempty"`
	CleanedCount   int    `json:"cleaned_count,omitempty"`
	TotalIncentive string `json:"total_incentive,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Engine         string `json:"engine,omitempty"`
}

// WSHub manages WebSocket connections and broadcasts recovery events to
// all connected clients.
type WSHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			slog.Info("ws client connected", "total", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))

		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all connected clients. Nil-safe so engines
// can run without a hub in tests.
func (h *WSHub) Broadcast(msg WSMessage) {
	if h == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop if buffer full to avoid blocking settlement.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- conn

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()
}
