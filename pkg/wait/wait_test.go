package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntil_Succeeds(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Options{Timeout: time.Second, Poll: time.Millisecond}, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntil_Timeout(t *testing.T) {
	notFound := errors.New("element not found")
	err := Until(context.Background(), Options{Timeout: 20 * time.Millisecond, Poll: 5 * time.Millisecond, Message: "login page"},
		func(ctx context.Context) (bool, error) {
			return false, Ignore(notFound)
		})

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 20*time.Millisecond, te.Timeout)
	assert.ErrorIs(t, err, notFound)
	assert.Contains(t, err.Error(), "waiting for login page")
}

func TestUntil_FatalError(t *testing.T) {
	boom := errors.New("session deleted")
	calls := 0
	err := Until(context.Background(), Options{Timeout: time.Second, Poll: time.Millisecond}, func(ctx context.Context) (bool, error) {
		calls++
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.False(t, IsIgnored(err))
}

func TestUntil_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Until(ctx, Options{Timeout: time.Second, Poll: time.Millisecond}, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFor_ReturnsValue(t *testing.T) {
	v, err := For(context.Background(), Options{Poll: time.Millisecond}, func(ctx context.Context) (string, bool, error) {
		return "ready", true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ready", v)
}

func TestIgnore(t *testing.T) {
	assert.Nil(t, Ignore(nil))
	assert.True(t, IsIgnored(Ignore(errors.New("x"))))
	assert.False(t, IsIgnored(errors.New("x")))
}

func TestDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, Short, o.Timeout)
	assert.Equal(t, 500*time.Millisecond, o.Poll)
	assert.Equal(t, 5*time.Second, Tiny)
	assert.Equal(t, 25*time.Second, Long)
}
