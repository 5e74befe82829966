package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHelpersWrapSentinels(t *testing.T) {
	err := Invalid("%s is required", "username")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "username is required")

	err = Malformed("unexpected token at offset %d", 3)
	assert.True(t, errors.Is(err, ErrMalformedPayload))

	err = NotFound("project", 42)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "project 42: not found", err.Error())
}

func TestAccessDeniedAndNotFoundAreDistinct(t *testing.T) {
	denied := fmt.Errorf("project 7: %w", ErrAccessDenied)

	assert.True(t, IsAccessDenied(denied))
	assert.False(t, IsNotFound(denied))
	assert.False(t, IsAccessDenied(NotFound("project", 7)))
}
