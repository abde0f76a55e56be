// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"encoding/json"
	"strconv"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/search"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// feedClientMessage is what a feed client may send upstream.
type feedClientMessage struct {
	Type string `json:"type"` // "search", "heartbeat"
	Term string `json:"term,omitempty"`
}

// searchUpdate is a search state change pushed back to the client.
type searchUpdate struct {
	Type  string         `json:"type"`
	State string         `json:"state"`
	Term  string         `json:"term"`
	Posts []*models.Post `json:"posts,omitempty"`
}

// FeedSocketHandler returns the live feed WebSocket handler for
// GET /api/ws/feed/:id. One connection serves three things: the post's
// comment feed (full set on every change), presence heartbeats, and
// interactive post search. Anonymous connections get the logged-out
// state instead of comments but can still search.
func (s *Server) FeedSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		middleware.ActiveWebSockets.Inc()
		defer middleware.ActiveWebSockets.Dec()

		postID64, err := strconv.ParseUint(conn.Params("id"), 10, 32)
		if err != nil || postID64 == 0 {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Invalid post ID"))
			_ = conn.Close()
			return
		}
		postID := uint(postID64)
		userID, _ := conn.Locals("userID").(uint)

		ctx := context.Background()
		client, err := s.feedHub.Register(ctx, postID, userID, conn)
		if err != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
			_ = conn.Close()
			return
		}

		// The handshake is complete; retire the single-use ticket.
		s.consumeWSTicket(ctx, conn.Locals("wsTicket"))

		coord := search.NewCoordinator(s.searchPosts, func(r search.Results) {
			payload, marshalErr := json.Marshal(searchUpdate{
				Type:  "search_results",
				State: r.State,
				Term:  r.Term,
				Posts: r.Posts,
			})
			if marshalErr != nil {
				return
			}
			client.TrySend(payload)
		}, search.DefaultDebounce)
		defer coord.Close()

		client.IncomingHandler = s.handleFeedMessage(ctx, coord, postID)

		go client.WritePump()
		// ReadPump blocks until the connection drops and unregisters the
		// client from its room on the way out.
		client.ReadPump()

		if userID > 0 {
			_ = s.presence.Leave(ctx, presenceRoom(postID), userID)
		}
	})
}

// handleFeedMessage dispatches one upstream message from a feed client.
func (s *Server) handleFeedMessage(
	ctx context.Context, coord *search.Coordinator, postID uint,
) func(*notifications.Client, []byte) {
	return func(client *notifications.Client, raw []byte) {
		var msg feedClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}

		switch msg.Type {
		case "search":
			coord.Input(ctx, msg.Term)
		case "heartbeat":
			if client.UserID > 0 {
				_ = s.presence.Heartbeat(ctx, presenceRoom(postID), client.UserID)
			}
		}
	}
}

// searchPosts adapts the post store to the search coordinator.
func (s *Server) searchPosts(ctx context.Context, term string, limit int) ([]*models.Post, error) {
	return s.postRepo.Search(ctx, term, limit, 0)
}
