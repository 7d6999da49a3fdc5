package correlator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_DrawsFreshIDOnCollision(t *testing.T) {
	c := New[string]()
	draws := []uint32{7, 7, 7, 9}
	c.nextID = func() uint32 {
		id := draws[0]
		draws = draws[1:]
		return id
	}

	first, err := c.Register()
	require.NoError(t, err)
	second, err := c.Register()
	require.NoError(t, err)

	assert.Equal(t, uint32(7), first)
	assert.Equal(t, uint32(9), second)
	assert.Equal(t, 2, c.Len())
}

func TestResolve_DeliversToWaiter(t *testing.T) {
	c := New[string]()
	id, err := c.Register()
	require.NoError(t, err)

	go func() {
		assert.True(t, c.Resolve(id, "pong"))
	}()

	v, err := c.Wait(context.Background(), id, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", v)
	assert.Zero(t, c.Len())
}

func TestResolve_UnknownID(t *testing.T) {
	c := New[string]()
	assert.False(t, c.Resolve(12345, "stray"))
}

func TestResolveBeforeWait(t *testing.T) {
	c := New[int]()
	id, err := c.Register()
	require.NoError(t, err)

	require.True(t, c.Resolve(id, 5))

	v, err := c.Wait(context.Background(), id, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestConcurrentRequests_OnlyAnsweredOneResolves(t *testing.T) {
	c := New[string]()
	answered, err := c.Register()
	require.NoError(t, err)
	ignored, err := c.Register()
	require.NoError(t, err)
	require.NotEqual(t, answered, ignored)

	var wg sync.WaitGroup
	var answeredVal string
	var answeredErr, ignoredErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		answeredVal, answeredErr = c.Wait(context.Background(), answered, 2*time.Second)
	}()
	go func() {
		defer wg.Done()
		_, ignoredErr = c.Wait(context.Background(), ignored, 100*time.Millisecond)
	}()

	require.True(t, c.Resolve(answered, "reply"))
	wg.Wait()

	assert.NoError(t, answeredErr)
	assert.Equal(t, "reply", answeredVal)
	assert.ErrorIs(t, ignoredErr, ErrTimeout)

	assert.False(t, c.Pending(answered))
	assert.False(t, c.Pending(ignored))
	assert.Zero(t, c.Len())
}

func TestClose_FailsPendingWaiters(t *testing.T) {
	c := New[string]()
	ids := make([]uint32, 3)
	for i := range ids {
		id, err := c.Register()
		require.NoError(t, err)
		ids[i] = id
	}

	errs := make(chan error, len(ids))
	for _, id := range ids {
		go func(id uint32) {
			_, err := c.Wait(context.Background(), id, time.Minute)
			errs <- err
		}(id)
	}

	time.Sleep(20 * time.Millisecond)
	c.Close()

	for range ids {
		select {
		case err := <-errs:
			assert.ErrorIs(t, err, ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("waiter not released by Close")
		}
	}
	assert.Zero(t, c.Len())

	_, err := c.Register()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWait_ContextCancel(t *testing.T) {
	c := New[string]()
	id, err := c.Register()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Wait(ctx, id, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.Pending(id))
}

func TestForget(t *testing.T) {
	c := New[string]()
	id, err := c.Register()
	require.NoError(t, err)

	c.Forget(id)
	assert.False(t, c.Resolve(id, "late"))
	assert.Zero(t, c.Len())
}
