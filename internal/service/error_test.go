package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	err := NewError(ErrTransferFailed, "upload failed", errors.New("timeout"))
	assert.Equal(t, ErrTransferFailed, CodeOf(err))

	// 经过包装后仍能提取错误码
	wrapped := fmt.Errorf("request failed: %w", err)
	assert.Equal(t, ErrTransferFailed, CodeOf(wrapped))

	assert.Equal(t, ErrInternal, CodeOf(errors.New("plain")))
}

func TestIsCode(t *testing.T) {
	err := NewError(ErrPermissionDenied, "mic denied", nil)
	assert.True(t, IsCode(err, ErrPermissionDenied))
	assert.False(t, IsCode(err, ErrNotFound))
	assert.False(t, IsCode(errors.New("plain"), ErrNotFound))
}

func TestAppErrorMessage(t *testing.T) {
	err := NewError(ErrNotFound, "member 7 not found", nil)
	assert.Contains(t, err.Error(), "member 7 not found")

	withCause := NewError(ErrDatabase, "query failed", errors.New("connection refused"))
	assert.Contains(t, withCause.Error(), "connection refused")
	assert.Equal(t, "connection refused", errors.Unwrap(withCause).Error())
}
