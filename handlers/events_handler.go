package handlers

import (
	"log"

	"github.com/anjiri1684/fee_ledger/middleware"
	"github.com/anjiri1684/fee_ledger/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServeEvents streams ledger events of one business. Browsers cannot set
// headers on the upgrade request, so the first frame must carry the token.
func (h *FinanceHandler) ServeEvents(c *websocketcontrib.Conn) {
	var msg authMessage
	if err := c.ReadJSON(&msg); err != nil || msg.Type != "auth" {
		log.Printf("WebSocket auth failed: invalid or missing auth message, error: %v", err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}
	claims, err := middleware.ParseToken(h.JWTSecret, msg.Token)
	if err != nil {
		log.Printf("WebSocket auth failed: invalid token, error: %v", err)
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}
	businessID, err := middleware.BusinessIDFromClaims(claims)
	if err != nil {
		log.Printf("WebSocket auth failed: %v", err)
		_ = c.WriteJSON(fiber.Map{"error": "Forbidden: business access required"})
		c.Close()
		return
	}

	// Written before registering: afterwards only the hub writes to c.
	_ = c.WriteJSON(fiber.Map{"type": "subscribed", "business_id": businessID})
	client := &websocket.Client{BusinessID: businessID, Conn: c}
	h.Hub.Register(client)
	defer func() {
		h.Hub.Unregister(client)
		c.Close()
	}()

	// Clients only listen; reading keeps the connection alive until it closes.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				log.Printf("WebSocket read error for business %s: %v", businessID, err)
			}
			return
		}
	}
}
