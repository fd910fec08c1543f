package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(ErrKindConflict, "name already exists")
	assert.Equal(t, "[conflict] name already exists", plain.Error())

	wrapped := Wrap(ErrKindStorageFailed, "failed to copy object", errors.New("boom"))
	assert.Equal(t, "[storage_failed] failed to copy object: boom", wrapped.Error())
}

func TestPredicatesTraverseWrapping(t *testing.T) {
	cause := errors.New("no such key")
	err := fmt.Errorf("listing: %w", Wrap(ErrKindNotFound, "missing", cause))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
	assert.ErrorIs(t, err, cause)
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid input", New(ErrKindInvalidInput, "bad"), true},
		{"conflict", New(ErrKindConflict, "taken"), true},
		{"storage", New(ErrKindStorageFailed, "down"), false},
		{"plain error", errors.New("x"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidation(tt.err))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "metadata_failed", ErrKindMetadataFailed.String())
	assert.Equal(t, "permission_denied", ErrKindPermissionDenied.String())
	assert.Equal(t, "unknown", ErrKind(99).String())
}

func TestMessageDropsCause(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", Wrap(ErrKindStorageFailed, "failed to list \"docs\"", errors.New("dial tcp")))
	assert.Equal(t, "failed to list \"docs\"", Message(wrapped))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
