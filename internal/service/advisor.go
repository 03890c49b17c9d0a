package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
)

const defaultAdvisorTimeout = 10 * time.Second

var (
	ErrMalformedSuggestion = errors.New("malformed move suggestion")
	ErrIllegalSuggestion   = errors.New("illegal move suggestion")
)

type AdvisorService interface {
	RequestMove(ctx context.Context, board entity.Board) int
}

type moveSuggester interface {
	SuggestMove(ctx context.Context, prompt string) (string, error)
}

type advisorService struct {
	logger    *slog.Logger
	suggester moveSuggester
	timeout   time.Duration
}

func NewAdvisorService(logger *slog.Logger, suggester moveSuggester, timeout time.Duration) AdvisorService {
	if timeout <= 0 {
		timeout = defaultAdvisorTimeout
	}

	return &advisorService{
		logger:    logger.With("component", "advisor"),
		suggester: suggester,
		timeout:   timeout,
	}
}

// RequestMove asks the remote service for the opponent's move. It never fails: any problem with the
// request or the reply falls back to the lowest empty cell.
func (that *advisorService) RequestMove(ctx context.Context, board entity.Board) int {
	log := that.logger.With("method", "RequestMove")

	fallback := board.FirstEmpty()
	if fallback == -1 {
		log.Error("move requested on a full board", "error", ErrNoAvailableMoves)
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, that.timeout)
	defer cancel()

	reply, err := that.suggester.SuggestMove(ctx, BuildPrompt(board))
	if err != nil {
		log.Warn("move suggestion failed, using fallback", "error", err, "fallback", fallback)
		return fallback
	}

	move, err := parseSuggestion(reply, board)
	if err != nil {
		log.Warn("move suggestion rejected, using fallback", "error", err, "reply", reply, "fallback", fallback)
		return fallback
	}

	log.Debug("move suggestion accepted", "move", move)

	return move
}

// BuildPrompt describes the board with the index of every empty cell and the mark of every filled one.
func BuildPrompt(board entity.Board) string {
	cells := make([]string, len(board))
	for i, cell := range board {
		if cell == entity.EmptyCell {
			cells[i] = strconv.Itoa(i)
			continue
		}
		cells[i] = string(cell)
	}

	return fmt.Sprintf(`You are playing Tic-Tac-Toe as '%s'. The current board is represented by indices 0-8: [%s].
'%s' is the opponent. Choose the best index for your next move to win or block '%s' from winning.
Think carefully but respond only with the JSON object containing the chosen index.`,
		entity.OpponentMark, strings.Join(cells, ", "), entity.HumanMark, entity.HumanMark)
}

type suggestion struct {
	Move *int `json:"move"`
}

func parseSuggestion(reply string, board entity.Board) (int, error) {
	var parsed suggestion
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return -1, fmt.Errorf("%w: %w", ErrMalformedSuggestion, err)
	}

	if parsed.Move == nil {
		return -1, fmt.Errorf("%w: move is missing", ErrMalformedSuggestion)
	}

	move := *parsed.Move
	if move < 0 || move >= len(board) {
		return -1, fmt.Errorf("%w: cell %d is out of range", ErrIllegalSuggestion, move)
	}

	if board[move] != entity.EmptyCell {
		return -1, fmt.Errorf("%w: cell %d is occupied", ErrIllegalSuggestion, move)
	}

	return move, nil
}
