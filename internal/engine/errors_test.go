package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/offsync/internal/changelog"
	"github.com/roach88/offsync/internal/ir"
)

func TestRemoteErrorHelpers(t *testing.T) {
	cause := errors.New("connection reset")
	fetch := NewFetchError("todos", cause)
	push := NewPushError("todos", changelog.Delete(ir.IntID(4)), cause)

	assert.True(t, IsFetchError(fetch))
	assert.False(t, IsPushError(fetch))
	assert.True(t, IsPushError(fmt.Errorf("wrapped: %w", push)))
	assert.False(t, IsFetchError(cause))
	assert.ErrorIs(t, push, cause)
}

func TestRemoteErrorMessage(t *testing.T) {
	cause := errors.New("timeout")

	assert.Equal(t, "REMOTE_FETCH: collection=todos: timeout",
		NewFetchError("todos", cause).Error())
	assert.Equal(t, "REMOTE_PUSH: Update 7 (collection=todos): timeout",
		NewPushError("todos", changelog.Update(ir.IntID(7), rec(7)), cause).Error())
}
