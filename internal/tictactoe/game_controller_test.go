package tictactoe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type mockBot struct {
	mock.Mock
}

func (that *mockBot) SelectMove(board entity.Board, difficulty entity.Difficulty) (int, error) {
	args := that.Called(board, difficulty)
	return args.Int(0), args.Error(1)
}

// blockingAdvisor answers with move once released, or gives up when its context is canceled.
type blockingAdvisor struct {
	move     int
	release  chan struct{}
	calls    atomic.Int32
	canceled atomic.Int32
}

func newBlockingAdvisor(move int) *blockingAdvisor {
	return &blockingAdvisor{move: move, release: make(chan struct{})}
}

func (that *blockingAdvisor) RequestMove(ctx context.Context, _ entity.Board) int {
	that.calls.Add(1)
	select {
	case <-that.release:
	case <-ctx.Done():
		that.canceled.Add(1)
	}
	return that.move
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForPhase(t *testing.T, controller *GameController, phase entity.Phase) entity.Snapshot {
	t.Helper()

	require.Eventually(t, func() bool {
		return controller.Snapshot().Phase == phase
	}, waitFor, tick)

	return controller.Snapshot()
}

func newHardController(bot *mockBot) *GameController {
	return NewGameController(discardLogger(), bot, newBlockingAdvisor(0),
		WithDelay(0),
		WithDifficulty(entity.Hard),
	)
}

func TestGameController_NewGame(t *testing.T) {
	// Given: a new controller
	controller := NewGameController(discardLogger(), &mockBot{}, newBlockingAdvisor(0), WithSessionID("s1"))

	// When: reading the snapshot
	snapshot := controller.Snapshot()

	// Then: a fresh game with the human to move and the remote opponent selected
	assert.Equal(t, "s1", snapshot.SessionID)
	assert.Equal(t, entity.NewGameState(), snapshot.Game)
	assert.Equal(t, entity.PhaseHumanTurn, snapshot.Phase)
	assert.Equal(t, entity.RemoteAI, snapshot.Difficulty)
	assert.False(t, snapshot.Thinking)
	assert.Equal(t, entity.Score{}, snapshot.Score)
}

func TestGameController_ApplyHumanMove(t *testing.T) {
	t.Run("Human move on the center triggers the opponent", func(t *testing.T) {
		// Given: a hard opponent answering with a corner
		bot := &mockBot{}
		bot.On("SelectMove", mock.Anything, entity.Hard).Return(0, nil).Once()
		controller := newHardController(bot)

		// When: the human plays the center
		snapshot := controller.ApplyHumanMove(4)

		// Then: X is on the center, the game goes on and the opponent is thinking
		assert.Equal(t, entity.HumanMark, snapshot.Game.Board[4])
		assert.Equal(t, entity.StatusInProgress, snapshot.Game.Outcome.Status)
		assert.Equal(t, entity.PhaseOpponentThinking, snapshot.Phase)
		assert.True(t, snapshot.Thinking)
		assert.Equal(t, entity.CueMove, snapshot.Cue)

		// And: the opponent answers and hands the turn back
		snapshot = waitForPhase(t, controller, entity.PhaseHumanTurn)
		assert.Equal(t, entity.OpponentMark, snapshot.Game.Board[0])
		assert.Equal(t, entity.HumanMark, snapshot.Game.Turn)
		bot.AssertExpectations(t)
	})

	t.Run("Human completing the top row wins without an opponent move", func(t *testing.T) {
		// Given: X on 0 and 1, O on 3 and 4
		bot := &mockBot{}
		bot.On("SelectMove", mock.Anything, entity.Hard).Return(3, nil).Once()
		bot.On("SelectMove", mock.Anything, entity.Hard).Return(4, nil).Once()
		controller := newHardController(bot)

		controller.ApplyHumanMove(0)
		waitForPhase(t, controller, entity.PhaseHumanTurn)
		controller.ApplyHumanMove(1)
		before := waitForPhase(t, controller, entity.PhaseHumanTurn)
		require.Equal(t, entity.Board{
			entity.PlayerX, entity.PlayerX, entity.EmptyCell,
			entity.PlayerO, entity.PlayerO, entity.EmptyCell,
		}, before.Game.Board)

		// When: the human plays 2
		snapshot := controller.ApplyHumanMove(2)

		// Then: X wins with the top row and the opponent is never asked again
		assert.Equal(t, entity.Outcome{Status: entity.StatusWin, Winner: entity.HumanMark, Line: []int{0, 1, 2}}, snapshot.Game.Outcome)
		assert.Equal(t, entity.PhaseTerminal, snapshot.Phase)
		assert.Equal(t, entity.CueWin, snapshot.Cue)
		assert.Equal(t, entity.Score{Human: 1}, snapshot.Score)
		bot.AssertExpectations(t)
		bot.AssertNumberOfCalls(t, "SelectMove", 2)
	})

	t.Run("Last human move on a full board is a draw", func(t *testing.T) {
		// Given: the opponent fills 1, 4, 6 and 8 while the human fills 0, 2, 3 and 7
		bot := &mockBot{}
		for _, cell := range []int{1, 4, 6, 8} {
			bot.On("SelectMove", mock.Anything, entity.Hard).Return(cell, nil).Once()
		}
		controller := newHardController(bot)

		for _, cell := range []int{0, 2, 3, 7} {
			controller.ApplyHumanMove(cell)
			waitForPhase(t, controller, entity.PhaseHumanTurn)
		}

		// When: the human plays 5
		snapshot := controller.ApplyHumanMove(5)

		// Then: the board is full without a triple
		assert.Equal(t, entity.Board{
			entity.PlayerX, entity.PlayerO, entity.PlayerX,
			entity.PlayerX, entity.PlayerO, entity.PlayerX,
			entity.PlayerO, entity.PlayerX, entity.PlayerO,
		}, snapshot.Game.Board)
		assert.Equal(t, entity.StatusDraw, snapshot.Game.Outcome.Status)
		assert.Equal(t, entity.PhaseTerminal, snapshot.Phase)
		assert.Equal(t, entity.CueDraw, snapshot.Cue)
		assert.Equal(t, entity.Score{Draws: 1}, snapshot.Score)
	})

	t.Run("Opponent win is recorded", func(t *testing.T) {
		// Given: the opponent takes the whole middle row
		bot := &mockBot{}
		for _, cell := range []int{3, 4, 5} {
			bot.On("SelectMove", mock.Anything, entity.Hard).Return(cell, nil).Once()
		}
		controller := newHardController(bot)

		// When: the human plays 0, 1 and 8
		controller.ApplyHumanMove(0)
		waitForPhase(t, controller, entity.PhaseHumanTurn)
		controller.ApplyHumanMove(1)
		waitForPhase(t, controller, entity.PhaseHumanTurn)
		controller.ApplyHumanMove(8)

		// Then: O wins and the score counts it once
		snapshot := waitForPhase(t, controller, entity.PhaseTerminal)
		assert.Equal(t, entity.Outcome{Status: entity.StatusWin, Winner: entity.OpponentMark, Line: []int{3, 4, 5}}, snapshot.Game.Outcome)
		assert.Equal(t, entity.Score{Opponent: 1}, snapshot.Score)
		assert.Equal(t, entity.EmptyCell, snapshot.Game.Turn)
	})

	t.Run("Occupied cells and terminal games ignore clicks", func(t *testing.T) {
		bot := &mockBot{}
		bot.On("SelectMove", mock.Anything, entity.Hard).Return(1, nil).Once()
		controller := newHardController(bot)

		controller.ApplyHumanMove(0)
		before := waitForPhase(t, controller, entity.PhaseHumanTurn)

		// When: clicking the occupied cells or outside the board
		for _, cell := range []int{0, 1, -1, 9} {
			after := controller.ApplyHumanMove(cell)

			// Then: nothing changes
			assert.Equal(t, before.Game, after.Game)
			assert.Equal(t, entity.PhaseHumanTurn, after.Phase)
			assert.Equal(t, entity.CueNone, after.Cue)
		}
		bot.AssertNumberOfCalls(t, "SelectMove", 1)
	})

	t.Run("Clicks while the opponent is thinking are ignored", func(t *testing.T) {
		// Given: a remote opponent that has not answered yet
		advisor := newBlockingAdvisor(8)
		controller := NewGameController(discardLogger(), &mockBot{}, advisor, WithDelay(0))
		controller.ApplyHumanMove(0)

		// When: the human clicks again
		snapshot := controller.ApplyHumanMove(1)

		// Then: the click is rejected
		assert.Equal(t, entity.EmptyCell, snapshot.Game.Board[1])
		assert.Equal(t, entity.PhaseOpponentThinking, snapshot.Phase)

		// And: the remote answer is applied once released
		close(advisor.release)
		snapshot = waitForPhase(t, controller, entity.PhaseHumanTurn)
		assert.Equal(t, entity.OpponentMark, snapshot.Game.Board[8])
		assert.Equal(t, int32(1), advisor.calls.Load())
	})
}

func TestGameController_Reset(t *testing.T) {
	t.Run("Reset while the remote opponent is thinking discards its move", func(t *testing.T) {
		// Given: a remote request in flight
		advisor := newBlockingAdvisor(8)
		controller := NewGameController(discardLogger(), &mockBot{}, advisor, WithDelay(0))
		thinking := controller.ApplyHumanMove(0)
		require.Eventually(t, func() bool { return advisor.calls.Load() == 1 }, waitFor, tick)

		// When: the game is reset
		snapshot := controller.Reset()

		// Then: a fresh game starts and the request is canceled
		assert.Equal(t, entity.NewGameState(), snapshot.Game)
		assert.Equal(t, entity.PhaseHumanTurn, snapshot.Phase)
		assert.Equal(t, entity.CueReset, snapshot.Cue)
		assert.Greater(t, snapshot.Generation, thinking.Generation)
		require.Eventually(t, func() bool { return advisor.canceled.Load() == 1 }, waitFor, tick)

		// And: the late answer never reaches the new board
		close(advisor.release)
		require.Never(t, func() bool {
			return controller.Snapshot().Game.Board != entity.Board{}
		}, 100*time.Millisecond, tick)
	})

	t.Run("Reset during the delay discards the move", func(t *testing.T) {
		// Given: a heuristic opponent with a long perceptual delay
		var selected atomic.Bool
		bot := &mockBot{}
		bot.On("SelectMove", mock.Anything, entity.Easy).
			Run(func(mock.Arguments) { selected.Store(true) }).
			Return(4, nil).
			Once()
		controller := NewGameController(discardLogger(), bot, newBlockingAdvisor(0),
			WithDelay(time.Hour),
			WithDifficulty(entity.Easy),
		)
		controller.ApplyHumanMove(0)
		require.Eventually(t, selected.Load, waitFor, tick)

		// When: the game is reset
		controller.Reset()

		// Then: the board stays empty
		assert.Equal(t, entity.Board{}, controller.Snapshot().Game.Board)
		assert.Equal(t, entity.PhaseHumanTurn, controller.Snapshot().Phase)
	})

	t.Run("Reset keeps the score", func(t *testing.T) {
		controller := NewGameController(discardLogger(), &mockBot{}, newBlockingAdvisor(0),
			WithScore(entity.Score{Human: 2, Opponent: 1, Draws: 3}),
		)

		snapshot := controller.Reset()

		assert.Equal(t, entity.Score{Human: 2, Opponent: 1, Draws: 3}, snapshot.Score)
	})
}

func TestGameController_SetDifficulty(t *testing.T) {
	// Given: a game in progress against the hard opponent
	bot := &mockBot{}
	bot.On("SelectMove", mock.Anything, entity.Hard).Return(4, nil).Once()
	controller := newHardController(bot)
	controller.ApplyHumanMove(0)
	waitForPhase(t, controller, entity.PhaseHumanTurn)

	// When: switching to easy
	snapshot := controller.SetDifficulty(entity.Easy)

	// Then: the board is reset and the new tier is used
	assert.Equal(t, entity.Easy, snapshot.Difficulty)
	assert.Equal(t, entity.Board{}, snapshot.Game.Board)
	assert.Equal(t, entity.CueReset, snapshot.Cue)
}

func TestGameController_OpponentFallback(t *testing.T) {
	tests := []struct {
		name string
		cell int
		err  error
	}{
		{name: "Selector failure plays the lowest empty cell", cell: -1, err: errors.New("no available moves")},
		{name: "Occupied cell plays the lowest empty cell", cell: 4, err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a selector that cannot produce a legal move
			bot := &mockBot{}
			bot.On("SelectMove", mock.Anything, entity.Hard).Return(tt.cell, tt.err).Once()
			controller := newHardController(bot)

			// When: the human takes the center
			controller.ApplyHumanMove(4)

			// Then: the opponent still answers on cell 0 and the game goes on
			snapshot := waitForPhase(t, controller, entity.PhaseHumanTurn)
			assert.Equal(t, entity.OpponentMark, snapshot.Game.Board[0])
			assert.Equal(t, 2, snapshot.Game.Board.Count(entity.OpponentMark)+snapshot.Game.Board.Count(entity.HumanMark))
		})
	}
}

func TestGameController_Subscribe(t *testing.T) {
	t.Run("Streams a snapshot for every transition", func(t *testing.T) {
		// Given: a subscribed presentation layer
		bot := &mockBot{}
		bot.On("SelectMove", mock.Anything, entity.Hard).Return(4, nil).Once()
		controller := newHardController(bot)

		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		updates, unsubscribe := controller.Subscribe(ctx)
		defer unsubscribe()

		// When: the human plays and the opponent answers
		controller.ApplyHumanMove(0)

		// Then: the human move and the opponent move arrive in order
		var received []entity.Snapshot
		for len(received) < 2 {
			select {
			case snapshot := <-updates:
				received = append(received, snapshot)
			case <-ctx.Done():
				t.Fatalf("timed out waiting for snapshots, got %d", len(received))
			}
		}

		assert.True(t, received[0].Thinking)
		assert.Equal(t, entity.CueMove, received[0].Cue)
		assert.False(t, received[1].Thinking)
		assert.Equal(t, entity.OpponentMark, received[1].Game.Board[4])
		assert.Equal(t, entity.CueMove, received[1].Cue)
	})

	t.Run("Close ends subscriptions", func(t *testing.T) {
		controller := NewGameController(discardLogger(), &mockBot{}, newBlockingAdvisor(0))
		updates, _ := controller.Subscribe(context.Background())

		controller.Close()

		_, ok := <-updates
		assert.False(t, ok)

		// And: a closed controller ignores moves
		snapshot := controller.ApplyHumanMove(0)
		assert.Equal(t, entity.Board{}, snapshot.Game.Board)
	})

	t.Run("Subscriptions without a deadline release their goroutines", func(t *testing.T) {
		// Given: many subscriptions on a background context
		before := runtime.NumGoroutine()
		controllers := make([]*GameController, 0, 50)
		for range 50 {
			controller := NewGameController(discardLogger(), &mockBot{}, newBlockingAdvisor(0))
			_, unsubscribe := controller.Subscribe(context.Background())
			controller.Subscribe(context.Background())
			unsubscribe()
			controllers = append(controllers, controller)
		}

		// When: every controller is closed
		for _, controller := range controllers {
			controller.Close()
		}

		// Then: no watcher goroutine is left behind
		require.Eventually(t, func() bool {
			return runtime.NumGoroutine() <= before
		}, waitFor, tick)
	})

	t.Run("Canceling the context unsubscribes", func(t *testing.T) {
		controller := NewGameController(discardLogger(), &mockBot{}, newBlockingAdvisor(0))
		ctx, cancel := context.WithCancel(context.Background())
		updates, _ := controller.Subscribe(ctx)

		cancel()

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-updates:
				return !ok
			default:
				return false
			}
		}, waitFor, tick)
	})
}
