// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ReserveBlob handles POST /api/blobs/reserve. It allocates a staging
// slot and returns the capability URL the raw image bytes go to.
func (s *Server) ReserveBlob(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	blob, err := s.blobService.Reserve(ctx, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewStagingUnavailableError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ref":        blob.Ref,
		"upload_url": "/api/blobs/upload/" + blob.Ref,
	})
}

// UploadBlob handles POST /api/blobs/upload/:ref. The request body is
// the raw image bytes, untouched by any client-side processing.
func (s *Server) UploadBlob(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ref := c.Params("ref")
	if ref == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid blob reference"))
	}

	blob, err := s.blobService.SaveUpload(ctx, ref, c.Get(fiber.HeaderContentType), c.Body())
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(fiber.Map{"storageId": blob.Ref})
}

// CommitBlob handles POST /api/blobs/:ref/commit. Committed blobs are
// pinned against the staging sweeper.
func (s *Server) CommitBlob(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ref := c.Params("ref")

	if err := s.blobService.Commit(ctx, ref); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteBlob handles DELETE /api/blobs/:ref.
func (s *Server) DeleteBlob(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ref := c.Params("ref")

	if err := s.blobService.Delete(ctx, ref); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetBlobContent handles GET /api/blobs/:ref/content and serves the
// stored image file.
func (s *Server) GetBlobContent(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ref := c.Params("ref")

	blob, err := s.blobService.GetByRef(ctx, ref)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusNotFound, err)
	}
	if blob.Path == "" {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Blob content", ref))
	}

	if blob.ContentType != "" {
		c.Set(fiber.HeaderContentType, blob.ContentType)
	}
	return c.SendFile(blob.Path)
}
