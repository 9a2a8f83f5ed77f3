package controller

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"donorlink/utils"
)

// ProgressEvent is one pipeline update pushed to websocket subscribers.
type ProgressEvent struct {
	Event      string    `json:"event"` // scheduled | resumed | retried | paused | cancelled | sent | failed
	CampaignID uint      `json:"campaign_id"`
	EmailID    uint      `json:"email_id,omitempty"`
	Count      int       `json:"count,omitempty"`
	At         time.Time `json:"at"`
}

// ProgressHub fans pipeline events out to websocket clients watching a
// campaign. Connections register per campaign ID; a dead connection is
// dropped on its first failed write.
type ProgressHub struct {
	mu   sync.Mutex
	subs map[uint]map[*websocket.Conn]bool
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		subs: make(map[uint]map[*websocket.Conn]bool),
	}
}

func (h *ProgressHub) Subscribe(campaignID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[campaignID] == nil {
		h.subs[campaignID] = make(map[*websocket.Conn]bool)
	}
	h.subs[campaignID][conn] = true
}

func (h *ProgressHub) Unsubscribe(campaignID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[campaignID], conn)
	if len(h.subs[campaignID]) == 0 {
		delete(h.subs, campaignID)
	}
}

// Broadcast pushes an event to everyone watching the campaign.
func (h *ProgressHub) Broadcast(campaignID uint, event ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.subs[campaignID] {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("Dropping websocket subscriber for campaign %d: %v", campaignID, err)
			conn.Close()
			delete(h.subs[campaignID], conn)
		}
	}
}

// HandleCampaignProgressWS upgrades the connection and streams pipeline
// events for one campaign until the client hangs up.
func HandleCampaignProgressWS(hub *ProgressHub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		campaignID := utils.ParseUint(c.Params("id"))
		if campaignID == 0 {
			c.WriteJSON(map[string]string{"error": "invalid campaign id"})
			c.Close()
			return
		}

		hub.Subscribe(campaignID, c)
		defer func() {
			hub.Unsubscribe(campaignID, c)
			c.Close()
		}()

		// Drain client frames; the read loop ends when the peer disconnects
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}
}
