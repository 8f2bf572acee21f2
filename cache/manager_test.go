package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerDefaultMemoryStore(t *testing.T) {
	m := NewManager()

	store, err := m.Store()
	require.NoError(t, err)
	require.NotNil(t, store)

	// The default store is created once and reused.
	again, err := m.Store()
	require.NoError(t, err)
	assert.Same(t, store, again)
}

func TestManagerUnknownStore(t *testing.T) {
	m := NewManager()

	_, err := m.Store("redis")
	assert.Error(t, err)
}

func TestManagerRegister(t *testing.T) {
	m := NewManager()
	custom := NewMemoryStore()
	m.Register("custom", custom)

	store, err := m.Store("custom")
	require.NoError(t, err)
	assert.Same(t, Store(custom), store)

	require.NoError(t, store.Put("k", "v", time.Minute))
	val, err := custom.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}
