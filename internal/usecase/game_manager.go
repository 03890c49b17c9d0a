package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-ai/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
	"github.com/rocketscienceinc/tictactoe-ai/internal/tictactoe"
)

const saveTimeout = 5 * time.Second

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, snapshot entity.Snapshot) error
	GetByID(ctx context.Context, id string) (*entity.Snapshot, error)
	DeleteByID(ctx context.Context, id string) error
}

type botService interface {
	SelectMove(board entity.Board, difficulty entity.Difficulty) (int, error)
}

type advisorService interface {
	RequestMove(ctx context.Context, board entity.Board) int
}

// GameManager keeps one game controller per browser session and mirrors every snapshot to the
// session repository.
type GameManager struct {
	logger      *slog.Logger
	sessionRepo sessionRepo
	bot         botService
	advisor     advisorService
	defaults    []tictactoe.Option

	mu       sync.RWMutex
	sessions map[string]*session
}

// session pairs a live controller with the goroutine mirroring it to the repository. persisted is
// closed once the last snapshot of the controller has been written.
type session struct {
	controller *tictactoe.GameController
	persisted  chan struct{}
}

// NewGameManager creates a manager. defaults are applied to every new controller before the
// restored session settings.
func NewGameManager(logger *slog.Logger, sessionRepo sessionRepo, bot botService, advisor advisorService, defaults ...tictactoe.Option) *GameManager {
	return &GameManager{
		logger:      logger.With("component", "game_manager"),
		sessionRepo: sessionRepo,
		bot:         bot,
		advisor:     advisor,
		defaults:    defaults,
		sessions:    make(map[string]*session),
	}
}

func (that *GameManager) GetState(ctx context.Context, sessionID string) (entity.Snapshot, error) {
	controller, err := that.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		return entity.Snapshot{}, err
	}

	return controller.Snapshot(), nil
}

func (that *GameManager) MakeTurn(ctx context.Context, sessionID string, cell int) (entity.Snapshot, error) {
	controller, err := that.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		return entity.Snapshot{}, err
	}

	return controller.ApplyHumanMove(cell), nil
}

func (that *GameManager) Reset(ctx context.Context, sessionID string) (entity.Snapshot, error) {
	controller, err := that.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		return entity.Snapshot{}, err
	}

	return controller.Reset(), nil
}

func (that *GameManager) SetDifficulty(ctx context.Context, sessionID string, difficulty entity.Difficulty) (entity.Snapshot, error) {
	controller, err := that.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		return entity.Snapshot{}, err
	}

	return controller.SetDifficulty(difficulty), nil
}

// Subscribe streams the snapshots of a session until ctx is done.
func (that *GameManager) Subscribe(ctx context.Context, sessionID string) (<-chan entity.Snapshot, func(), error) {
	controller, err := that.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	updates, unsubscribe := controller.Subscribe(ctx)

	return updates, unsubscribe, nil
}

// GetOrCreateSession returns the live controller of a session, restoring the score and the
// difficulty from the repository when the session is not in memory.
func (that *GameManager) GetOrCreateSession(ctx context.Context, sessionID string) (*tictactoe.GameController, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", apperror.ErrSessionNotFound)
	}

	that.mu.RLock()
	live, ok := that.sessions[sessionID]
	that.mu.RUnlock()

	if ok {
		return live.controller, nil
	}

	opts, err := that.restore(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	// another request may have created it meanwhile
	if live, ok = that.sessions[sessionID]; ok {
		return live.controller, nil
	}

	controller := tictactoe.NewGameController(that.logger, that.bot, that.advisor, opts...)
	live = &session{controller: controller, persisted: make(chan struct{})}
	that.sessions[sessionID] = live

	updates, _ := controller.Subscribe(context.Background())
	go that.persist(sessionID, live, updates, controller.Snapshot())

	that.logger.Info("session started", "sessionID", sessionID)

	return controller, nil
}

// CloseSession stops the controller of a session and forgets it. The stored snapshot is deleted
// only after the pending writes of the controller have landed.
func (that *GameManager) CloseSession(ctx context.Context, sessionID string) error {
	log := that.logger.With("method", "CloseSession", "sessionID", sessionID)

	that.mu.Lock()
	live, ok := that.sessions[sessionID]
	delete(that.sessions, sessionID)
	that.mu.Unlock()

	if ok {
		live.controller.Close()

		select {
		case <-live.persisted:
		case <-ctx.Done():
			return fmt.Errorf("failed to wait for pending writes: %w", ctx.Err())
		}
	}

	err := that.sessionRepo.DeleteByID(ctx, sessionID)
	if err != nil && !errors.Is(err, apperror.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if !ok && err != nil {
		return fmt.Errorf("%w: %s", apperror.ErrSessionNotFound, sessionID)
	}

	log.Info("session closed")

	return nil
}

// RunJanitor evicts sessions without activity for longer than idle until ctx is done. Evicted
// sessions stay in the repository and are restored on the next request.
func (that *GameManager) RunJanitor(ctx context.Context, idle, interval time.Duration) {
	log := that.logger.With("method", "RunJanitor")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("janitor stopped")
			return
		case <-ticker.C:
			if evicted := that.EvictIdle(idle); evicted > 0 {
				log.Info("evicted idle sessions", "count", evicted)
			}
		}
	}
}

// EvictIdle closes every controller idle for longer than idle and returns how many were closed.
func (that *GameManager) EvictIdle(idle time.Duration) int {
	threshold := time.Now().Add(-idle)

	that.mu.Lock()
	evicted := make([]*session, 0)
	for id, live := range that.sessions {
		if live.controller.LastActivity().Before(threshold) {
			evicted = append(evicted, live)
			delete(that.sessions, id)
		}
	}
	that.mu.Unlock()

	for _, live := range evicted {
		live.controller.Close()
	}

	return len(evicted)
}

// Close stops every live session and waits until their last snapshots are stored.
func (that *GameManager) Close() {
	that.mu.Lock()
	sessions := that.sessions
	that.sessions = make(map[string]*session)
	that.mu.Unlock()

	for _, live := range sessions {
		live.controller.Close()
	}

	for _, live := range sessions {
		<-live.persisted
	}
}

func (that *GameManager) restore(ctx context.Context, sessionID string) ([]tictactoe.Option, error) {
	opts := append([]tictactoe.Option{}, that.defaults...)
	opts = append(opts, tictactoe.WithSessionID(sessionID))

	snapshot, err := that.sessionRepo.GetByID(ctx, sessionID)
	if errors.Is(err, apperror.ErrSessionNotFound) {
		return opts, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session by id: %w", err)
	}

	opts = append(opts, tictactoe.WithScore(snapshot.Score))

	if difficulty, err := entity.ParseDifficulty(string(snapshot.Difficulty)); err == nil {
		opts = append(opts, tictactoe.WithDifficulty(difficulty))
	}

	return opts, nil
}

// persist writes snapshots to the repository. When the subscription is dropped because the
// repository fell behind, it catches up with the current state and subscribes again.
func (that *GameManager) persist(sessionID string, live *session, updates <-chan entity.Snapshot, initial entity.Snapshot) {
	defer close(live.persisted)

	that.save(initial)

	for {
		for snapshot := range updates {
			that.save(snapshot)
		}

		if !that.isLive(sessionID, live) {
			return
		}

		updates, _ = live.controller.Subscribe(context.Background())
		that.save(live.controller.Snapshot())
	}
}

func (that *GameManager) isLive(sessionID string, live *session) bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.sessions[sessionID] == live
}

func (that *GameManager) save(snapshot entity.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := that.sessionRepo.CreateOrUpdate(ctx, snapshot); err != nil {
		that.logger.Error("failed to save session", "sessionID", snapshot.SessionID, "error", err)
	}
}
