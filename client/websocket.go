package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HistoryEventType classifies monitor notifications.
type HistoryEventType string

const (
	// HistoryEventCompleted fires when a generation finishes executing and
	// its entry lands in the server's history.
	HistoryEventCompleted HistoryEventType = "completed"
	// HistoryEventQueueChanged fires when the remaining queue size changes.
	HistoryEventQueueChanged HistoryEventType = "queue_changed"
)

// HistoryEvent is one notification from a HistoryMonitor.
type HistoryEvent struct {
	Type           HistoryEventType
	PromptID       string
	QueueRemaining int
}

// HistoryMonitor watches the ComfyUI websocket so a caller can re-resolve
// metadata as new generations land in history.  It reconnects with
// exponential backoff when the connection drops.
type HistoryMonitor struct {
	client   *ComfyClient
	events   chan HistoryEvent
	done     chan struct{}
	mu       sync.Mutex
	conn     *websocket.Conn
	MaxRetry int
	// Exponential backoff configuration
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NewHistoryMonitor builds a monitor for the client's server.  Events are
// delivered on the returned monitor's channel after Start.
func (c *ComfyClient) NewHistoryMonitor() *HistoryMonitor {
	return &HistoryMonitor{
		client:    c,
		events:    make(chan HistoryEvent, 16),
		done:      make(chan struct{}),
		MaxRetry:  5,
		BaseDelay: time.Second,
		MaxDelay:  time.Minute,
	}
}

// Events returns the notification channel.  It is closed when the monitor
// stops, either by Stop or by exhausting reconnect attempts.
func (m *HistoryMonitor) Events() <-chan HistoryEvent {
	return m.events
}

// Start connects and begins delivering events in a background goroutine.
func (m *HistoryMonitor) Start() {
	go m.run()
}

// Stop closes the connection and the event channel.
func (m *HistoryMonitor) Stop() {
	close(m.done)
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.Unlock()
}

func (m *HistoryMonitor) run() {
	defer close(m.events)
	retries := 0
	for {
		select {
		case <-m.done:
			return
		default:
		}

		wsurl := fmt.Sprintf("ws://%s/ws?clientId=%s", m.client.serverBaseAddress, m.client.clientid)
		conn, _, err := websocket.DefaultDialer.Dial(wsurl, nil)
		if err != nil {
			slog.Error("websocket connection attempt failed", "error", err)
			retries++
			if retries > m.MaxRetry {
				slog.Error(fmt.Sprintf("maximum number of retries reached (%d)", m.MaxRetry))
				return
			}
			select {
			case <-time.After(m.reconnectDelay(retries)):
			case <-m.done:
				return
			}
			continue
		}
		retries = 0

		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()

		m.readLoop(conn)
	}
}

func (m *HistoryMonitor) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-m.done:
			default:
				slog.Warn(fmt.Sprintf("read error: %v", err))
			}
			return
		}
		m.handleMessage(message)
	}
}

// handleMessage translates the status traffic this monitor cares about.
// Everything else on the socket (progress, previews, custom node chatter)
// is ignored.
func (m *HistoryMonitor) handleMessage(raw []byte) {
	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Error("deserializing status message", "error", err)
		return
	}

	switch msg.Type {
	case "status":
		var s struct {
			Status struct {
				ExecInfo struct {
					QueueRemaining int `json:"queue_remaining"`
				} `json:"exec_info"`
			} `json:"status"`
		}
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			return
		}
		m.emit(HistoryEvent{Type: HistoryEventQueueChanged, QueueRemaining: s.Status.ExecInfo.QueueRemaining})
	case "executing":
		var s struct {
			Node     *string `json:"node"`
			PromptID string  `json:"prompt_id"`
		}
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			return
		}
		// a null node means the final node of the prompt was processed
		if s.Node == nil {
			m.emit(HistoryEvent{Type: HistoryEventCompleted, PromptID: s.PromptID})
		}
	}
}

func (m *HistoryMonitor) emit(ev HistoryEvent) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// exponential backoff calculation, capped at MaxDelay
func (m *HistoryMonitor) reconnectDelay(retries int) time.Duration {
	delay := m.BaseDelay * time.Duration(math.Pow(2, float64(retries-1)))
	if delay > m.MaxDelay {
		delay = m.MaxDelay
	}
	return delay
}
