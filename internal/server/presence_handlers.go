// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// presenceRoom derives the presence room name for a post page.
func presenceRoom(postID uint) string {
	return "post:" + uintString(postID)
}

// PresenceHeartbeat handles POST /api/posts/:id/presence. Each call
// upserts the viewer and pushes their liveness window forward; clients
// send one on page load and then on an interval.
func (s *Server) PresenceHeartbeat(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.presence.Heartbeat(ctx, presenceRoom(postID), userID); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetPresence handles GET /api/posts/:id/presence and returns the live
// viewers of a post page, ascending by user ID.
func (s *Server) GetPresence(c *fiber.Ctx) error {
	ctx := c.UserContext()

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	viewers, err := s.presence.ListViewers(ctx, presenceRoom(postID))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if viewers == nil {
		viewers = []uint{}
	}

	return c.JSON(fiber.Map{
		"post_id": postID,
		"viewers": viewers,
		"count":   len(viewers),
	})
}

// PresenceLeave handles DELETE /api/posts/:id/presence for clients that
// can announce their departure instead of waiting for expiry.
func (s *Server) PresenceLeave(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.presence.Leave(ctx, presenceRoom(postID), userID); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.SendStatus(fiber.StatusNoContent)
}
