package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
)

const (
	actionState      = "game:state"
	actionTurn       = "game:turn"
	actionReset      = "game:reset"
	actionDifficulty = "game:difficulty"
	actionUpdate     = "game:update"
	actionError      = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload is shared by requests and responses; every action reads the fields it needs.
type Payload struct {
	Cell       *int             `json:"cell,omitempty"`
	Difficulty string           `json:"difficulty,omitempty"`
	Snapshot   *entity.Snapshot `json:"snapshot,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// connection serializes writes: gorilla allows a single concurrent writer per connection.
type connection struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (that *connection) sendMessage(action string, payload Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if err = that.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err = that.conn.WriteJSON(Message{Action: action, Payload: raw}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *connection) sendSnapshot(snapshot entity.Snapshot) error {
	return that.sendMessage(actionUpdate, Payload{Snapshot: &snapshot})
}

func (that *connection) sendErrorResponse(errorMsg string) error {
	if err := that.sendMessage(actionError, Payload{Error: errorMsg}); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}

func (that *connection) ping() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}
