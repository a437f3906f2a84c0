/*
Package handler provides the HTTP handlers and routing setup for the signaling relay.

This file contains the HandleWebSocket function, responsible for rate
limiting, upgrading the HTTP connection to WebSocket, and starting the
connection's read and write loops.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"sigrelay/internal/app/signaling"
	"sigrelay/internal/pkg/errs"
	"sigrelay/internal/pkg/limiter"
	"sigrelay/internal/pkg/logx"
	"sigrelay/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc that upgrades the request
// to a WebSocket connection and attaches it to the hub.
//
// A connection is open before it joins: identity assignment only
// happens when the client sends a join envelope, and a connection that
// never joins is still cleaned up normally on close.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := signaling.NewClient(deps.Hub, conn)
		deps.Hub.Attach(client)

		go client.WritePump()

		logx.Info("WebSocket connection established", "remote_addr", conn.RemoteAddr().String())

		client.ReadPump()
	}
}
