// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/noldarim/agentbridge/internal/agui"
	"github.com/rs/zerolog"
)

const (
	// WebSocket limits
	maxMessageSize = 1 << 20
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	writeWait      = 10 * time.Second
	sendBuffer     = 64
	maxQueuedRuns  = 4
)

// newUpgrader creates a WebSocket upgrader that respects the configured allowed
// origins. When allowedOrigins is empty the upgrader accepts any origin
// (localhost development mode). When set, only those origins are permitted.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := newOriginSet(allowedOrigins)

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return allowed.empty() || allowed.has(r.Header.Get("Origin"))
		},
	}
}

// wsConn is one WebSocket client. Runs are served one after another in the
// order they arrive; their events are queued on send and written by
// writePump.
type wsConn struct {
	conn   *websocket.Conn
	runner Runner
	runs   chan agui.RunAgentInput
	send   chan []byte
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// HandleWebSocket upgrades the connection and serves runs over it. The
// client sends one RunAgentInput per text frame; every output event comes
// back as its own JSON text frame. The connection stays open for more runs.
func HandleWebSocket(runner Runner, allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			getLog().Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		c := &wsConn{
			conn:   conn,
			runner: runner,
			runs:   make(chan agui.RunAgentInput, maxQueuedRuns),
			send:   make(chan []byte, sendBuffer),
			log:    *requestLog(r.Context()),
		}
		c.log.Info().Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

		ctx, cancel := context.WithCancel(r.Context())
		done := make(chan struct{})
		go func() {
			c.writePump(cancel)
			close(done)
		}()
		c.wg.Add(1)
		go c.runLoop(ctx)
		c.readPump(ctx, cancel)
		<-done
	}
}

func (c *wsConn) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		cancel()
		close(c.runs)
		c.wg.Wait()
		close(c.send) // signals writePump to exit
		c.log.Info().Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Error().Err(err).Msg("WebSocket read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		in, err := agui.DecodeRunAgentInput(message)
		if err != nil {
			c.log.Warn().Err(err).Msg("Invalid run input on WebSocket")
			c.reject(err.Error(), CodeInvalidInput)
			continue
		}

		select {
		case c.runs <- in:
		default:
			c.reject("too many runs queued on this connection", CodeTooManyRuns)
		}
	}
}

// runLoop serves queued runs until the connection closes.
func (c *wsConn) runLoop(ctx context.Context) {
	defer c.wg.Done()
	for in := range c.runs {
		if ctx.Err() != nil {
			continue
		}
		c.serveRun(ctx, in)
	}
}

// serveRun streams one run to the client.
func (c *wsConn) serveRun(ctx context.Context, in agui.RunAgentInput) {
	c.log.Debug().Str("thread_id", in.ThreadID).Str("run_id", in.RunID).Msg("WebSocket run started")
	for ev := range c.runner.Run(ctx, in) {
		data, err := ev.ToJSON()
		if err != nil {
			c.log.Error().Err(err).Msg("Failed to encode event")
			c.reject(err.Error(), CodeEncodingFailed)
			return
		}
		select {
		case c.send <- data:
		case <-ctx.Done():
			return
		}
	}
}

// reject reports a run that could not be served as a RUN_ERROR frame.
func (c *wsConn) reject(message, code string) {
	data, err := agui.NewRunError(message, code, agui.Now()).ToJSON()
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn().Str("code", code).Msg("Dropping error frame for slow WebSocket client")
	}
}

func (c *wsConn) writePump(cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		c.conn.Close()
		// Drain so a run blocked on send can observe the cancellation.
		for range c.send {
		}
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed by readPump, send close frame.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error().Err(err).Msg("WebSocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
