package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
)

// handleState sends the current snapshot to the requesting client only.
func (that *Server) handleState(ctx context.Context, sessionID string, _ *Message, conn *connection) error {
	snapshot, err := that.gameUseCase.GetState(ctx, sessionID)
	if err != nil {
		_ = conn.sendErrorResponse("failed to get the game")
		return fmt.Errorf("failed to get state: %w", err)
	}

	return conn.sendSnapshot(snapshot)
}

// handleGameTurn plays the human move. The resulting transitions reach the client through the
// session subscription.
func (that *Server) handleGameTurn(ctx context.Context, sessionID string, msg *Message, conn *connection) error {
	log := that.logger.With("method", "handleGameTurn", "sessionID", sessionID)

	var payloadReq Payload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil || payloadReq.Cell == nil {
		log.Warn("cell is missing in payload")
		return conn.sendErrorResponse("cell is required")
	}

	if _, err := that.gameUseCase.MakeTurn(ctx, sessionID, *payloadReq.Cell); err != nil {
		_ = conn.sendErrorResponse("failed to make a turn")
		return fmt.Errorf("failed to make turn: %w", err)
	}

	return nil
}

func (that *Server) handleReset(ctx context.Context, sessionID string, _ *Message, conn *connection) error {
	if _, err := that.gameUseCase.Reset(ctx, sessionID); err != nil {
		_ = conn.sendErrorResponse("failed to reset the game")
		return fmt.Errorf("failed to reset: %w", err)
	}

	return nil
}

func (that *Server) handleDifficulty(ctx context.Context, sessionID string, msg *Message, conn *connection) error {
	var payloadReq Payload
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		return conn.sendErrorResponse("malformed payload")
	}

	difficulty, err := entity.ParseDifficulty(payloadReq.Difficulty)
	if err != nil {
		return conn.sendErrorResponse(err.Error())
	}

	if _, err = that.gameUseCase.SetDifficulty(ctx, sessionID, difficulty); err != nil {
		_ = conn.sendErrorResponse("failed to change difficulty")
		return fmt.Errorf("failed to set difficulty: %w", err)
	}

	return nil
}
