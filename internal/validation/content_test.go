package validation

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTitle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		title   string
		wantErr bool
	}{
		{"Valid", "Hello World", false},
		{"Exactly Min Length", "abcde", false},
		{"Too Short", "abcd", true},
		{"Whitespace Padding Does Not Count", "  ab  ", true},
		{"Too Long", strings.Repeat("a", 201), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTitle(tt.title)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBody(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateBody(strings.Repeat("x", 20)))
	assert.Error(t, ValidateBody(strings.Repeat("x", 19)))
	assert.Error(t, ValidateBody("   "))
}

func TestValidateCommentContent(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateCommentContent("yes"))
	assert.Error(t, ValidateCommentContent("no"))
	assert.Error(t, ValidateCommentContent(strings.Repeat("a", 2001)))
}

func TestValidateImage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		data        []byte
		contentType string
		wantErr     bool
	}{
		{"Valid", []byte{0xFF, 0xD8}, "image/jpeg", false},
		{"Empty", nil, "image/jpeg", true},
		{"Exactly Max Bytes", bytes.Repeat([]byte{0x1}, ImageMaxBytes), "image/png", false},
		{"Over Max Bytes", bytes.Repeat([]byte{0x1}, ImageMaxBytes+1), "image/png", true},
		{"Not An Image Type", []byte{0x1}, "application/pdf", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.data, tt.contentType)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
