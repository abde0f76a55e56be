// Package service implements application-level workflows on top of the
// repository and staging layers.
package service

import (
	"context"
	"log/slog"

	"inkwell/internal/blobstore"
	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Publisher drives the post-with-image publish pipeline: validate, stage
// the image, create the post, and undo the staged upload if the post
// write fails.
type Publisher struct {
	postRepo repository.PostRepository
	stager   blobstore.Stager
}

// PublishInput carries a complete publish request.
type PublishInput struct {
	UserID           uint
	Title            string
	Content          string
	Image            []byte
	ImageContentType string
}

// NewPublisher wires a publisher over the given post store and stager.
func NewPublisher(postRepo repository.PostRepository, stager blobstore.Stager) *Publisher {
	return &Publisher{postRepo: postRepo, stager: stager}
}

// Publish runs the pipeline in strict order. No side effect happens
// before validation passes, and a post write failure triggers exactly
// one compensating delete of the staged blob. The compensation itself is
// best-effort; its failure is logged and never surfaced.
func (p *Publisher) Publish(ctx context.Context, in PublishInput) (*models.Post, error) {
	span, ctx := observability.NewSpan(ctx, "publish.pipeline")
	defer span.End()
	span.AddAttributes(attribute.Int("user_id", int(in.UserID)))

	if err := p.validate(in); err != nil {
		observability.PublishOutcomes.WithLabelValues("invalid_input").Inc()
		span.SetError(err)
		return nil, err
	}

	slot, err := p.stager.Reserve(ctx)
	if err != nil {
		observability.PublishOutcomes.WithLabelValues("staging_unavailable").Inc()
		span.SetError(err)
		return nil, models.NewStagingUnavailableError(err)
	}
	span.AddAttributes(attribute.String("blob_ref", slot.Ref))

	storageID, err := p.stager.Upload(ctx, slot.UploadURL, in.ImageContentType, in.Image)
	if err != nil {
		observability.PublishOutcomes.WithLabelValues("upload_failed").Inc()
		span.SetError(err)
		return nil, models.NewUploadFailedError(err)
	}

	post := &models.Post{
		Title:    in.Title,
		Content:  in.Content,
		ImageRef: storageID,
		ImageURL: "/api/blobs/" + storageID + "/content",
		UserID:   in.UserID,
	}
	if err := p.postRepo.Create(ctx, post); err != nil {
		p.compensate(ctx, storageID)
		observability.PublishOutcomes.WithLabelValues("post_creation_failed").Inc()
		span.SetError(err)
		return nil, models.NewPostCreationFailedError(err)
	}

	if err := p.stager.Commit(ctx, storageID); err != nil {
		// The post exists and references the blob; a failed commit only
		// risks an early sweep, so log and keep going.
		middleware.Logger.WarnContext(ctx, "blob commit failed after post creation",
			slog.String("blob_ref", storageID),
			slog.Uint64("post_id", uint64(post.ID)),
			slog.String("error", err.Error()))
	}

	cache.InvalidatePostsList(ctx)
	observability.PublishOutcomes.WithLabelValues("success").Inc()

	created, err := p.postRepo.GetByID(ctx, post.ID, in.UserID)
	if err != nil {
		return post, nil
	}
	return created, nil
}

// validate rejects bad input before any slot is reserved.
func (p *Publisher) validate(in PublishInput) error {
	if err := validation.ValidateTitle(in.Title); err != nil {
		return models.NewInvalidInputError(err.Error())
	}
	if err := validation.ValidateBody(in.Content); err != nil {
		return models.NewInvalidInputError(err.Error())
	}
	if err := validation.ValidateImage(in.Image, in.ImageContentType); err != nil {
		return models.NewInvalidInputError(err.Error())
	}
	return nil
}

// compensate issues the single best-effort delete of an uploaded blob
// whose post never materialized.
func (p *Publisher) compensate(ctx context.Context, ref string) {
	if err := p.stager.Delete(ctx, ref); err != nil {
		observability.BlobCompensations.WithLabelValues("failed").Inc()
		middleware.Logger.WarnContext(ctx, "compensating blob delete failed",
			slog.String("code", models.CodeCleanupFailed),
			slog.String("blob_ref", ref),
			slog.String("error", err.Error()))
		return
	}
	observability.BlobCompensations.WithLabelValues("deleted").Inc()
	middleware.Logger.InfoContext(ctx, "deleted orphaned blob after failed post creation",
		slog.String("blob_ref", ref))
}
