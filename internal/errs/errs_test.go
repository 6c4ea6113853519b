package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindSentinel(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := New(KindConnection, "connect", cause)

	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSendFailure)
	assert.Equal(t, "connect: connection error: dial tcp: refused", err.Error())
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("mark read: %w", New(KindNotificationSync, "markAsRead", nil))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindNotificationSync, kind)
	assert.ErrorIs(t, err, ErrNotificationSync)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}
