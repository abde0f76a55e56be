package seed

import (
	"testing"

	"inkwell/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratedContentPassesValidation(t *testing.T) {
	for i := 0; i < 50; i++ {
		require.NoError(t, validation.ValidateTitle(Title()))
		require.NoError(t, validation.ValidateBody(Body()))
		require.NoError(t, validation.ValidateCommentContent(CommentBody()))
	}
}

func TestTitleHasNoTrailingPeriod(t *testing.T) {
	for i := 0; i < 20; i++ {
		title := Title()
		assert.NotEmpty(t, title)
		assert.NotEqual(t, byte('.'), title[len(title)-1])
	}
}
