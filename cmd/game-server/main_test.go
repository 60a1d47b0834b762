package main

import (
	"context"
	"testing"

	"multiplayer/internal/config"
	"multiplayer/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStorageMemory(t *testing.T) {
	st, err := openStorage(context.Background(), config.ServerConfig{StorageDriver: config.StorageMemory})
	require.NoError(t, err)
	defer st.Close()
	assert.IsType(t, &store.MemoryStore{}, st)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestOpenStorageUnknownDriver(t *testing.T) {
	_, err := openStorage(context.Background(), config.ServerConfig{StorageDriver: "sqlite"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}
