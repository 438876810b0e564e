package errorutil

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError_PassesDomainErrorsThrough(t *testing.T) {
	t.Parallel()

	err := NewNotFound("work order", map[string]any{"id": "abc"})
	de := ToDomainError(err)

	require.NotNil(t, de)
	assert.Equal(t, CodeNotFound, de.Code)
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	assert.Equal(t, "abc", de.Details["id"])
}

func TestToDomainError_WrapsUnknownErrors(t *testing.T) {
	t.Parallel()

	de := ToDomainError(errors.New("boom"))

	require.NotNil(t, de)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
}

type providerError struct{ code string }

func (p *providerError) Error() string { return "provider: " + p.code }

func TestNewStorageError_KeepsProviderError(t *testing.T) {
	t.Parallel()

	original := &providerError{code: "57P01"}
	err := NewStorageError(original)

	var got *providerError
	require.True(t, errors.As(err, &got))
	assert.Same(t, original, got)
	assert.True(t, IsStorage(err))
	assert.False(t, IsNotFound(err))
}

func TestHasCode_WrappedErrors(t *testing.T) {
	t.Parallel()

	wrapped := errors.Join(errors.New("context"), NewConflict("stale", nil))

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsValidation(wrapped))
}
