package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blockwatch/blockwatch/internal/api"
	"github.com/blockwatch/blockwatch/internal/database"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
	feedBuffer     = 32
)

// FeedMessageType identifies a live feed message
type FeedMessageType string

const (
	FeedMessageAlertsCreated FeedMessageType = "alerts_created"
	FeedMessageHello         FeedMessageType = "hello"
)

// FeedMessage is one message on /ws/alerts
type FeedMessage struct {
	Type          FeedMessageType `json:"type"`
	ObservationID string          `json:"observation_id,omitempty"`
	SiteID        string          `json:"site_id,omitempty"`
	BlockID       string          `json:"block_id,omitempty"`
	Alerts        []api.AlertItem `json:"alerts,omitempty"`
}

// feedClient is one websocket subscriber. A client whose buffer is full is dropped.
type feedClient struct {
	conn   *websocket.Conn
	send   chan []byte
	siteID string // empty means every site
}

// AlertFeedHandler streams newly created alerts to websocket subscribers.
// It implements the ingestion AlertSink.
type AlertFeedHandler struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*feedClient]struct{}
}

// NewAlertFeedHandler creates the live alert feed. checkOrigin may be nil to allow all origins.
func NewAlertFeedHandler(checkOrigin func(origin string) bool) *AlertFeedHandler {
	return &AlertFeedHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || checkOrigin == nil || checkOrigin(origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*feedClient]struct{}),
	}
}

// SetupRoutes configures the websocket route
func (h *AlertFeedHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/alerts", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection; ?site_id= narrows the feed to one site.
func (h *AlertFeedHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("AlertFeed: Failed to upgrade WebSocket: %v", err)
		return
	}

	c := &feedClient{
		conn:   conn,
		send:   make(chan []byte, feedBuffer),
		siteID: r.URL.Query().Get("site_id"),
	}
	if hello, err := json.Marshal(FeedMessage{Type: FeedMessageHello, SiteID: c.siteID}); err == nil {
		c.send <- hello
	}
	h.register(c)
	log.Printf("AlertFeed: Subscriber connected from %s (%d total)", r.RemoteAddr, h.ClientCount())

	go h.writePump(c)
	h.readPump(c)
}

func (h *AlertFeedHandler) register(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *AlertFeedHandler) unregister(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump discards client input and notices disconnects
func (h *AlertFeedHandler) readPump(c *feedClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		log.Printf("AlertFeed: Subscriber disconnected (%d remaining)", h.ClientCount())
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("AlertFeed: read error: %v", err)
			}
			return
		}
	}
}

func (h *AlertFeedHandler) writePump(c *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// AlertsCreated broadcasts alerts to every subscriber interested in the observation's site.
func (h *AlertFeedHandler) AlertsCreated(_ context.Context, obs *database.Observation, alerts []database.Alert) {
	msg, err := json.Marshal(FeedMessage{
		Type:          FeedMessageAlertsCreated,
		ObservationID: obs.ID,
		SiteID:        obs.SiteID,
		BlockID:       obs.BlockID,
		Alerts:        api.AlertsToItems(alerts),
	})
	if err != nil {
		log.Printf("AlertFeed: Failed to encode message: %v", err)
		return
	}

	var slow []*feedClient
	h.mu.RLock()
	for c := range h.clients {
		if c.siteID != "" && c.siteID != obs.SiteID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("Warning: AlertFeed: dropping slow subscriber")
		h.unregister(c)
	}
}

// ClientCount returns the number of connected subscribers
func (h *AlertFeedHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber
func (h *AlertFeedHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
