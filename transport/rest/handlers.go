package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/tictactoe-ai/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
	"github.com/rocketscienceinc/tictactoe-ai/internal/pkg"
)

type gameUseCase interface {
	GetState(ctx context.Context, sessionID string) (entity.Snapshot, error)
	MakeTurn(ctx context.Context, sessionID string, cell int) (entity.Snapshot, error)
	Reset(ctx context.Context, sessionID string) (entity.Snapshot, error)
	SetDifficulty(ctx context.Context, sessionID string, difficulty entity.Difficulty) (entity.Snapshot, error)
	CloseSession(ctx context.Context, sessionID string) error
}

type Handlers interface {
	GetGame(w http.ResponseWriter, r *http.Request)
	MakeTurn(w http.ResponseWriter, r *http.Request)
	Reset(w http.ResponseWriter, r *http.Request)
	SetDifficulty(w http.ResponseWriter, r *http.Request)
	GetScore(w http.ResponseWriter, r *http.Request)
	EndGame(w http.ResponseWriter, r *http.Request)
}

type turnRequest struct {
	Cell *int `json:"cell"`
}

type difficultyRequest struct {
	Difficulty string `json:"difficulty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	logger *slog.Logger
	game   gameUseCase
}

func NewHandlers(logger *slog.Logger, game gameUseCase) Handlers {
	return &handlers{
		logger: logger.With("component", "rest"),
		game:   game,
	}
}

func (that *handlers) GetGame(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := pkg.EnsureSessionCookie(w, r)

	snapshot, err := that.game.GetState(r.Context(), sessionID)
	that.respond(w, "GetGame", snapshot, err)
}

// MakeTurn - plays the human move. Clicks that are not legal leave the game unchanged and still
// return the current snapshot.
func (that *handlers) MakeTurn(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := pkg.EnsureSessionCookie(w, r)

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Cell == nil {
		that.writeError(w, http.StatusBadRequest, "cell is required")
		return
	}

	snapshot, err := that.game.MakeTurn(r.Context(), sessionID, *req.Cell)
	that.respond(w, "MakeTurn", snapshot, err)
}

func (that *handlers) Reset(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := pkg.EnsureSessionCookie(w, r)

	snapshot, err := that.game.Reset(r.Context(), sessionID)
	that.respond(w, "Reset", snapshot, err)
}

func (that *handlers) SetDifficulty(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := pkg.EnsureSessionCookie(w, r)

	var req difficultyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		that.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	difficulty, err := entity.ParseDifficulty(req.Difficulty)
	if err != nil {
		that.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, err := that.game.SetDifficulty(r.Context(), sessionID, difficulty)
	that.respond(w, "SetDifficulty", snapshot, err)
}

func (that *handlers) GetScore(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := pkg.EnsureSessionCookie(w, r)

	snapshot, err := that.game.GetState(r.Context(), sessionID)
	that.respond(w, "GetScore", snapshot.Score, err)
}

// EndGame - closes the session and forgets its stored snapshot.
func (that *handlers) EndGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "EndGame")

	sessionID, _ := pkg.EnsureSessionCookie(w, r)

	err := that.game.CloseSession(r.Context(), sessionID)
	if errors.Is(err, apperror.ErrSessionNotFound) {
		that.writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if err != nil {
		log.Error("failed to close session", "sessionID", sessionID, "error", err)
		that.writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (that *handlers) respond(w http.ResponseWriter, method string, body any, err error) {
	if err != nil {
		that.logger.Error("request failed", "method", method, "error", err)
		that.writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	that.writeJSON(w, http.StatusOK, body)
}

func (that *handlers) writeError(w http.ResponseWriter, status int, message string) {
	that.writeJSON(w, status, errorResponse{Error: message})
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
