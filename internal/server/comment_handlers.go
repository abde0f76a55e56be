// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment creates a comment on a post (protected)
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	created, err := s.commentService.CreateComment(ctx, service.CreateCommentInput{
		UserID:  userID,
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	s.feedHub.NotifyChanged(ctx, postID)

	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetComments returns the comments of a post (public). Anonymous
// visitors get the logged-out display state instead of the comment
// list; clients render a sign-in prompt for it.
func (s *Server) GetComments(c *fiber.Ctx) error {
	ctx := c.UserContext()

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	userID, authenticated := s.optionalUserID(c)
	if !authenticated {
		return c.JSON(fiber.Map{
			"authenticated": false,
			"comments":      []*models.Comment{},
		})
	}

	comments, err := s.commentService.ListComments(ctx, postID, userID)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	if comments == nil {
		comments = []*models.Comment{}
	}

	return c.JSON(fiber.Map{
		"authenticated": true,
		"comments":      comments,
	})
}

// UpdateComment updates a comment (only owner)
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	updated, err := s.commentService.UpdateComment(ctx, service.UpdateCommentInput{
		UserID:    userID,
		CommentID: commentID,
		Content:   req.Content,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	s.feedHub.NotifyChanged(ctx, updated.PostID)

	return c.JSON(updated)
}

// DeleteComment deletes a comment (owner or admin)
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	deleted, err := s.commentService.DeleteComment(ctx, service.DeleteCommentInput{
		UserID:    userID,
		CommentID: commentID,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	s.feedHub.NotifyChanged(ctx, deleted.PostID)

	return c.SendStatus(fiber.StatusOK)
}
