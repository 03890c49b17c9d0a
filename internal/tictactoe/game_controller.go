package tictactoe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
)

const (
	DefaultOpponentDelay = 600 * time.Millisecond

	subscriberBuffer = 8
)

type botService interface {
	SelectMove(board entity.Board, difficulty entity.Difficulty) (int, error)
}

type advisorService interface {
	RequestMove(ctx context.Context, board entity.Board) int
}

type Option func(*GameController)

// WithDelay sets the pause before an opponent move is shown.
func WithDelay(delay time.Duration) Option {
	return func(that *GameController) {
		that.delay = delay
	}
}

func WithDifficulty(difficulty entity.Difficulty) Option {
	return func(that *GameController) {
		that.difficulty = difficulty
	}
}

// WithScore restores the score of a session.
func WithScore(score entity.Score) Option {
	return func(that *GameController) {
		that.score = score
	}
}

func WithSessionID(id string) Option {
	return func(that *GameController) {
		that.sessionID = id
	}
}

type subscriber struct {
	ch        chan entity.Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber() *subscriber {
	return &subscriber{
		ch:   make(chan entity.Snapshot, subscriberBuffer),
		done: make(chan struct{}),
	}
}

func (that *subscriber) close() {
	that.closeOnce.Do(func() {
		close(that.ch)
		close(that.done)
	})
}

// GameController owns the game state of one session. It is the only writer of that state and
// processes one transition at a time.
type GameController struct {
	logger  *slog.Logger
	bot     botService
	advisor advisorService
	delay   time.Duration

	mu          sync.Mutex
	sessionID   string
	state       entity.GameState
	phase       entity.Phase
	difficulty  entity.Difficulty
	score       entity.Score
	cue         entity.Cue
	generation  uint64
	updatedAt   time.Time
	closed      bool
	cancelMove  context.CancelFunc
	subscribers map[*subscriber]struct{}
}

func NewGameController(logger *slog.Logger, bot botService, advisor advisorService, opts ...Option) *GameController {
	controller := &GameController{
		bot:         bot,
		advisor:     advisor,
		delay:       DefaultOpponentDelay,
		state:       entity.NewGameState(),
		phase:       entity.PhaseHumanTurn,
		difficulty:  entity.DefaultDifficulty,
		updatedAt:   time.Now(),
		subscribers: make(map[*subscriber]struct{}),
	}

	for _, opt := range opts {
		opt(controller)
	}

	controller.logger = logger.With("component", "game_controller", "sessionID", controller.sessionID)

	return controller
}

// ApplyHumanMove places the human mark on cell. Moves outside the human turn or on an occupied cell
// are ignored and the current snapshot is returned.
func (that *GameController) ApplyHumanMove(cell int) entity.Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "ApplyHumanMove", "cell", cell)

	if that.closed || that.phase != entity.PhaseHumanTurn {
		log.Debug("move ignored", "phase", that.phase)
		return that.snapshotLocked(entity.CueNone)
	}

	if err := that.state.Place(entity.HumanMark, cell); err != nil {
		log.Debug("move ignored", "error", err)
		return that.snapshotLocked(entity.CueNone)
	}

	that.cue = entity.CueFor(that.state.Outcome)

	if that.state.IsFinished() {
		that.finishLocked()
		return that.publishLocked()
	}

	that.phase = entity.PhaseOpponentThinking
	that.startOpponentLocked()

	return that.publishLocked()
}

// Reset discards the current game and any pending opponent move. The score is kept.
func (that *GameController) Reset() entity.Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.resetLocked()

	return that.publishLocked()
}

// SetDifficulty switches the opponent and starts a new game.
func (that *GameController) SetDifficulty(difficulty entity.Difficulty) entity.Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.difficulty = difficulty
	that.resetLocked()

	return that.publishLocked()
}

// Snapshot returns the current state without a sound cue.
func (that *GameController) Snapshot() entity.Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshotLocked(entity.CueNone)
}

// Subscribe streams a snapshot after every transition until ctx is done or the returned function is
// called. Subscribers that do not keep up are dropped and their channel is closed.
func (that *GameController) Subscribe(ctx context.Context) (<-chan entity.Snapshot, func()) {
	that.mu.Lock()
	defer that.mu.Unlock()

	sub := newSubscriber()
	if that.closed {
		sub.close()
		return sub.ch, func() {}
	}

	that.subscribers[sub] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			that.mu.Lock()
			delete(that.subscribers, sub)
			that.mu.Unlock()
			sub.close()
		})
	}

	// the watcher also ends when the subscription is closed by unsubscribe, Close or a dropped send
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-sub.done:
		}
	}()

	return sub.ch, unsubscribe
}

// Close cancels the pending opponent move and ends every subscription.
func (that *GameController) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}

	that.closed = true
	that.cancelPendingLocked()
	that.generation++

	for sub := range that.subscribers {
		sub.close()
		delete(that.subscribers, sub)
	}
}

// LastActivity reports when the state last changed.
func (that *GameController) LastActivity() time.Time {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.updatedAt
}

func (that *GameController) startOpponentLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	that.cancelMove = cancel

	go that.playOpponent(ctx, that.generation, that.state.Board, that.difficulty)
}

// playOpponent computes the opponent move, waits for the delay and commits the move unless the game
// was reset in the meantime.
func (that *GameController) playOpponent(ctx context.Context, generation uint64, board entity.Board, difficulty entity.Difficulty) {
	log := that.logger.With("method", "playOpponent", "generation", generation, "difficulty", difficulty)

	cell, err := that.selectMove(ctx, board, difficulty)
	if ctx.Err() != nil {
		log.Debug("opponent move abandoned", "error", ctx.Err())
		return
	}

	if err != nil {
		log.Error("failed to select opponent move, using first empty cell", "error", err)
		cell = board.FirstEmpty()
	}

	timer := time.NewTimer(that.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		log.Debug("opponent move abandoned", "error", ctx.Err())
		return
	case <-timer.C:
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.generation != generation || that.phase != entity.PhaseOpponentThinking {
		log.Debug("stale opponent move discarded", "current", that.generation)
		return
	}

	that.cancelPendingLocked()

	if err = that.state.Place(entity.OpponentMark, cell); err != nil {
		fallback := that.state.Board.FirstEmpty()
		log.Error("opponent move rejected, using first empty cell", "cell", cell, "fallback", fallback, "error", err)

		if err = that.state.Place(entity.OpponentMark, fallback); err != nil {
			log.Error("failed to place opponent move", "error", err)
			return
		}
	}

	that.cue = entity.CueFor(that.state.Outcome)

	if that.state.IsFinished() {
		that.finishLocked()
	} else {
		that.phase = entity.PhaseHumanTurn
	}

	that.publishLocked()
}

func (that *GameController) selectMove(ctx context.Context, board entity.Board, difficulty entity.Difficulty) (int, error) {
	if difficulty.IsRemote() {
		return that.advisor.RequestMove(ctx, board), nil
	}

	cell, err := that.bot.SelectMove(board, difficulty)
	if err != nil {
		return -1, fmt.Errorf("bot failed to select move: %w", err)
	}

	return cell, nil
}

func (that *GameController) finishLocked() {
	that.phase = entity.PhaseTerminal
	that.score.Record(that.state.Outcome)

	that.logger.Info("game finished",
		"status", that.state.Outcome.Status,
		"winner", that.state.Outcome.Winner,
		"score", that.score,
	)
}

func (that *GameController) resetLocked() {
	that.cancelPendingLocked()
	that.generation++

	that.state = entity.NewGameState()
	that.phase = entity.PhaseHumanTurn
	that.cue = entity.CueReset
}

func (that *GameController) cancelPendingLocked() {
	if that.cancelMove != nil {
		that.cancelMove()
		that.cancelMove = nil
	}
}

func (that *GameController) snapshotLocked(cue entity.Cue) entity.Snapshot {
	board := that.state.Board
	outcome := that.state.Outcome
	if outcome.Line != nil {
		outcome.Line = append([]int(nil), outcome.Line...)
	}

	return entity.Snapshot{
		SessionID: that.sessionID,
		Game: entity.GameState{
			Board:   board,
			Turn:    that.state.Turn,
			Outcome: outcome,
		},
		Phase:      that.phase,
		Thinking:   that.phase == entity.PhaseOpponentThinking,
		Difficulty: that.difficulty,
		Score:      that.score,
		Cue:        cue,
		Generation: that.generation,
		UpdatedAt:  that.updatedAt,
	}
}

func (that *GameController) publishLocked() entity.Snapshot {
	that.updatedAt = time.Now()
	snapshot := that.snapshotLocked(that.cue)

	for sub := range that.subscribers {
		select {
		case sub.ch <- snapshot:
		default:
			that.logger.Warn("dropping slow subscriber")
			sub.close()
			delete(that.subscribers, sub)
		}
	}

	return snapshot
}
