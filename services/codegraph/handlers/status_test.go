// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the status hub and its WebSocket endpoint

package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

func TestStatusHub_SetAndGet(t *testing.T) {
	hub := NewStatusHub()

	hub.Set(datatypes.RepositoryStatus{
		Repository: "proj",
		Stage:      datatypes.StatusLoading,
		Progress:   5,
	})

	status, ok := hub.Get("proj")
	require.True(t, ok)
	assert.Equal(t, datatypes.StatusLoading, status.Stage)
	assert.NotZero(t, status.UpdatedAt)

	_, ok = hub.Get("other")
	assert.False(t, ok)
}

func TestStatusHub_Delete(t *testing.T) {
	hub := NewStatusHub()
	hub.Set(datatypes.RepositoryStatus{Repository: "proj", Stage: datatypes.StatusReady})

	hub.Delete("proj")

	_, ok := hub.Get("proj")
	assert.False(t, ok)
}

func TestStatusHub_LatestStatusWins(t *testing.T) {
	hub := NewStatusHub()
	hub.Set(datatypes.RepositoryStatus{Repository: "proj", Stage: datatypes.StatusLoading, Progress: 5})
	hub.Set(datatypes.RepositoryStatus{Repository: "proj", Stage: datatypes.StatusReady, Progress: 100})

	status, ok := hub.Get("proj")
	require.True(t, ok)
	assert.Equal(t, datatypes.StatusReady, status.Stage)
	assert.Equal(t, 100, status.Progress)
}

func TestHandleStatusWebSocket_SnapshotAndBroadcast(t *testing.T) {
	hub := NewStatusHub()
	hub.Set(datatypes.RepositoryStatus{
		Repository: "proj",
		Stage:      datatypes.StatusIngesting,
		Progress:   40,
	})

	router := gin.New()
	router.GET("/v1/repositories/ws", HandleStatusWebSocket(hub))
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := strings.Replace(server.URL, "http", "ws", 1) + "/v1/repositories/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	// Snapshot arrives first.
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshot datatypes.RepositoryStatus
	require.NoError(t, ws.ReadJSON(&snapshot))
	assert.Equal(t, "proj", snapshot.Repository)
	assert.Equal(t, datatypes.StatusIngesting, snapshot.Stage)

	// Broadcasts follow. Registration happens after the snapshot is sent,
	// so give the server a moment.
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Set(datatypes.RepositoryStatus{
		Repository: "proj",
		Stage:      datatypes.StatusReady,
		Progress:   100,
	})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update datatypes.RepositoryStatus
	require.NoError(t, ws.ReadJSON(&update))
	assert.Equal(t, datatypes.StatusReady, update.Stage)
	assert.Equal(t, 100, update.Progress)
}

func TestStatusHub_DroppedClientIsRemoved(t *testing.T) {
	hub := NewStatusHub()

	router := gin.New()
	router.GET("/ws", HandleStatusWebSocket(hub))
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := strings.Replace(server.URL, "http", "ws", 1) + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ws.Close()

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
