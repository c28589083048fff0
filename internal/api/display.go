package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stopwatch-widget/backend/internal/stopwatch"
)

// DisplayEvent describes websocket payloads pushed to the rendering
// surface. Every event carries the full display snapshot.
type DisplayEvent struct {
	Type      string                    `json:"type"`
	Snapshot  stopwatch.DisplaySnapshot `json:"snapshot"`
	Timestamp time.Time                 `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// DisplayNotifier keeps track of active websocket clients and
// broadcasts display snapshots. It is the controller's display sink.
type DisplayNotifier struct {
	mu           sync.Mutex
	clients      map[*wsClient]struct{}
	lastSnapshot *DisplayEvent
}

// NewDisplayNotifier constructs a notifier instance.
func NewDisplayNotifier() *DisplayNotifier {
	return &DisplayNotifier{clients: make(map[*wsClient]struct{})}
}

// Push implements stopwatch.DisplaySink.
func (n *DisplayNotifier) Push(snapshot stopwatch.DisplaySnapshot) error {
	n.Broadcast(DisplayEvent{Type: "display", Snapshot: snapshot})
	return nil
}

// Register attaches a websocket connection, replays the last snapshot
// so a fresh page renders current state immediately, and returns a
// client handle.
func (n *DisplayNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	last := n.lastSnapshot
	n.mu.Unlock()

	if last != nil {
		_ = client.writeJSON(*last)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes
// the socket.
func (n *DisplayNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the supplied event to all registered websocket
// clients. Clients whose writes fail are dropped.
func (n *DisplayNotifier) Broadcast(event DisplayEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	snapshot := event
	n.lastSnapshot = &snapshot

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// LastSnapshot returns a copy of the most recently broadcast event.
func (n *DisplayNotifier) LastSnapshot() *DisplayEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastSnapshot == nil {
		return nil
	}
	copy := *n.lastSnapshot
	return &copy
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
