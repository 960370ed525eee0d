// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// StatusHub tracks the ingestion lifecycle of every repository and fans
// status updates out to connected WebSocket clients.
//
// Writes to individual connections happen under the hub lock, so WriteJSON
// is never called concurrently on the same connection.
type StatusHub struct {
	mu       sync.Mutex
	statuses map[string]datatypes.RepositoryStatus
	clients  map[*websocket.Conn]struct{}
}

// NewStatusHub creates an empty hub.
func NewStatusHub() *StatusHub {
	return &StatusHub{
		statuses: make(map[string]datatypes.RepositoryStatus),
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// Set records the latest status for a repository and broadcasts it to all
// connected clients. UpdatedAt is stamped here.
func (h *StatusHub) Set(status datatypes.RepositoryStatus) {
	status.UpdatedAt = time.Now().UnixMilli()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.statuses[status.Repository] = status

	for ws := range h.clients {
		if err := ws.WriteJSON(status); err != nil {
			slog.Warn("Failed to write status update, dropping client", "error", err)
			ws.Close()
			delete(h.clients, ws)
		}
	}
}

// Get returns the last known status for a repository.
func (h *StatusHub) Get(repository string) (datatypes.RepositoryStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.statuses[repository]
	return s, ok
}

// Delete forgets a repository's status, typically after the repository
// itself is deleted.
func (h *StatusHub) Delete(repository string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.statuses, repository)
}

// snapshot returns all known statuses for the initial WebSocket catch-up.
func (h *StatusHub) snapshot() []datatypes.RepositoryStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]datatypes.RepositoryStatus, 0, len(h.statuses))
	for _, s := range h.statuses {
		out = append(out, s)
	}
	return out
}

func (h *StatusHub) register(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[ws] = struct{}{}
}

func (h *StatusHub) unregister(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, ws)
}

// HandleStatusWebSocket upgrades the connection and streams repository
// status updates until the client disconnects. The current state of every
// known repository is sent immediately on connect.
func HandleStatusWebSocket(hub *StatusHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the status websocket", "error", err)
			return
		}
		defer ws.Close()
		slog.Info("Status websocket client connected")

		for _, s := range hub.snapshot() {
			if err := ws.WriteJSON(s); err != nil {
				slog.Warn("Failed to send status snapshot", "error", err)
				return
			}
		}

		hub.register(ws)
		defer hub.unregister(ws)

		// Drain the connection; clients only listen on this socket.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				slog.Info("Status websocket client disconnected", "error", err.Error())
				return
			}
		}
	}
}
