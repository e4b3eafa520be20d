package websocket

import (
	"context"
	"encoding/json"
	"time"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/zenith/internal/planner"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Workspace is the live data a client streams.
type Workspace interface {
	Snapshot() planner.Snapshot
	Watch(fn func()) (cancel func())
}

// Client represents a single WebSocket connection of one user.
type Client struct {
	userID string
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	done   chan struct{}
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, userID string) *Client {
	return &Client{
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Run registers the client, starts the write and snapshot pumps, and runs
// the read pump. It blocks until the connection is closed, then
// unregisters.
func (c *Client) Run(ctx context.Context, src Workspace) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.snapshotPump(ctx, src)
	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump reads and discards all incoming messages. It returns on error
// (connection close), which triggers cleanup.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
	}
}

// snapshotPump sends the workspace snapshot once on connect and again
// after every change. Changes that arrive while a snapshot is being sent
// collapse into one.
func (c *Client) snapshotPump(ctx context.Context, src Workspace) {
	dirty := make(chan struct{}, 1)
	dirty <- struct{}{}
	unwatch := src.Watch(func() {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	defer unwatch()

	for {
		select {
		case <-dirty:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}

		msg := NewMessage("workspace", "snapshot", "", nil)
		msg.Data = src.Snapshot()
		data, err := json.Marshal(msg)
		if err != nil {
			c.hub.logger.Error("marshal snapshot", "user_id", c.userID, "error", err)
			continue
		}

		select {
		case c.send <- data:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
