package validation

import (
	"fmt"
	"strings"
)

// Content rules mirrored by the web client; the server is authoritative.
const (
	TitleMinLength   = 5
	TitleMaxLength   = 200
	BodyMinLength    = 20
	CommentMinLength = 3
	CommentMaxLength = 2000
	// ImageMaxBytes caps uploaded cover images at 5 MB.
	ImageMaxBytes = 5_000_000
)

// ValidateTitle checks post title length bounds.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if len(trimmed) < TitleMinLength {
		return fmt.Errorf("title must be at least %d characters", TitleMinLength)
	}
	if len(trimmed) > TitleMaxLength {
		return fmt.Errorf("title must be at most %d characters", TitleMaxLength)
	}
	return nil
}

// ValidateBody checks post body length.
func ValidateBody(body string) error {
	if len(strings.TrimSpace(body)) < BodyMinLength {
		return fmt.Errorf("content must be at least %d characters", BodyMinLength)
	}
	return nil
}

// ValidateCommentContent checks comment length bounds.
func ValidateCommentContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < CommentMinLength {
		return fmt.Errorf("comment must be at least %d characters", CommentMinLength)
	}
	if len(trimmed) > CommentMaxLength {
		return fmt.Errorf("comment must be at most %d characters", CommentMaxLength)
	}
	return nil
}

// ValidateImage checks cover image size and declared content type.
func ValidateImage(data []byte, contentType string) error {
	if len(data) == 0 {
		return fmt.Errorf("image is required")
	}
	if len(data) > ImageMaxBytes {
		return fmt.Errorf("image must be at most %d bytes", ImageMaxBytes)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("unsupported content type %q", contentType)
	}
	return nil
}
