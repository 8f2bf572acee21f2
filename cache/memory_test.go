package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutAndGet(t *testing.T) {
	store := NewMemoryStore()

	err := store.Put("key1", "value1", time.Minute)
	require.NoError(t, err)

	val, err := store.Get("key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", val)
}

func TestMemoryStoreGetNonExistent(t *testing.T) {
	store := NewMemoryStore()

	val, err := store.Get("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestMemoryStoreExpiration(t *testing.T) {
	store := NewMemoryStore()

	err := store.Put("expiring", "value", 10*time.Millisecond)
	require.NoError(t, err)

	val, err := store.Get("expiring")
	require.NoError(t, err)
	assert.Equal(t, "value", val)

	time.Sleep(20 * time.Millisecond)

	val, err = store.Get("expiring")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestMemoryStoreForget(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.Put("key", "value", time.Minute))
	require.NoError(t, store.Forget("key"))

	val, err := store.Get("key")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestMemoryStoreFlush(t *testing.T) {
	store := NewMemoryStore()

	require.NoError(t, store.Put("a", 1, time.Minute))
	require.NoError(t, store.Put("b", 2, time.Minute))
	require.NoError(t, store.Flush())

	val, err := store.Get("a")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRememberEvaluatesOnceWhileFresh(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	fn := func() (any, error) {
		calls++
		return "computed", nil
	}

	val, err := store.Remember("key", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "computed", val)

	val, err = store.Remember("key", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "computed", val)
	assert.Equal(t, 1, calls)
}

func TestRememberReevaluatesAfterExpiry(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	fn := func() (any, error) {
		calls++
		return calls, nil
	}

	_, err := store.Remember("key", 10*time.Millisecond, fn)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	val, err := store.Remember("key", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, val)
}

func TestRememberDoesNotStoreErrors(t *testing.T) {
	store := NewMemoryStore()
	boom := errors.New("boom")

	_, err := store.Remember("key", time.Minute, func() (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	val, err := store.Remember("key", time.Minute, func() (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
}
