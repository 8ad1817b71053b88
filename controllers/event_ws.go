package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"unihub/models"
	"unihub/utils"
)

// RequireUpgrade rejects plain HTTP requests on websocket routes.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// LiveSeats streams seat counts for one event: a snapshot on connect, then
// one message per registration change until the client disconnects.
func (ec *EventController) LiveSeats(conn *websocket.Conn) {
	defer conn.Close()

	eventID, ok := utils.ParseID(conn.Params("eventId"))
	if !ok {
		_ = conn.WriteJSON(fiber.Map{"error": "Invalid event ID"})
		return
	}

	var event models.Event
	if err := ec.DB.First(&event, eventID).Error; err != nil {
		_ = conn.WriteJSON(fiber.Map{"error": "Event not found"})
		return
	}

	updates, unsubscribe := ec.Hub.Subscribe(eventID)
	defer unsubscribe()

	if err := conn.WriteJSON(seatUpdate(&event, "snapshot")); err != nil {
		return
	}

	// The read loop only watches for the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				logrus.WithError(err).WithField("event_id", eventID).Debug("live seat write failed")
				return
			}
		}
	}
}
