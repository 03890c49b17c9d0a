package tui

import (
	"context"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
)

type mockController struct {
	mock.Mock
	updates chan entity.Snapshot
}

func newMockController() *mockController {
	controller := &mockController{updates: make(chan entity.Snapshot, 4)}
	controller.On("Snapshot").Return(entity.Snapshot{Game: entity.NewGameState(), Difficulty: entity.RemoteAI}).Maybe()

	return controller
}

func (that *mockController) ApplyHumanMove(cell int) entity.Snapshot {
	return that.Called(cell).Get(0).(entity.Snapshot)
}

func (that *mockController) Reset() entity.Snapshot {
	return that.Called().Get(0).(entity.Snapshot)
}

func (that *mockController) SetDifficulty(difficulty entity.Difficulty) entity.Snapshot {
	return that.Called(difficulty).Get(0).(entity.Snapshot)
}

func (that *mockController) Snapshot() entity.Snapshot {
	return that.Called().Get(0).(entity.Snapshot)
}

func (that *mockController) Subscribe(context.Context) (<-chan entity.Snapshot, func()) {
	return that.updates, func() {}
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestView_HandleKey(t *testing.T) {
	t.Run("Digits play the matching cell", func(t *testing.T) {
		controller := newMockController()
		controller.On("ApplyHumanMove", 0).Return(entity.Snapshot{}).Once()
		controller.On("ApplyHumanMove", 8).Return(entity.Snapshot{}).Once()
		view := New(tview.NewApplication(), controller, nil)

		assert.Nil(t, view.HandleKey(runeKey('1')))
		assert.Nil(t, view.HandleKey(runeKey('9')))

		controller.AssertExpectations(t)
	})

	t.Run("Letters switch the tier and reset", func(t *testing.T) {
		controller := newMockController()
		controller.On("SetDifficulty", entity.Easy).Return(entity.Snapshot{}).Once()
		controller.On("SetDifficulty", entity.Hard).Return(entity.Snapshot{}).Once()
		controller.On("SetDifficulty", entity.RemoteAI).Return(entity.Snapshot{}).Once()
		controller.On("Reset").Return(entity.Snapshot{}).Once()
		view := New(tview.NewApplication(), controller, nil)

		for _, r := range "ehar" {
			assert.Nil(t, view.HandleKey(runeKey(r)))
		}

		controller.AssertExpectations(t)
	})

	t.Run("Other keys are passed on", func(t *testing.T) {
		view := New(tview.NewApplication(), newMockController(), nil)

		arrow := tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
		assert.Same(t, arrow, view.HandleKey(arrow))

		zero := runeKey('0')
		assert.Same(t, zero, view.HandleKey(zero))
	})

	t.Run("Sound toggle shows in the status", func(t *testing.T) {
		view := New(tview.NewApplication(), newMockController(), nil)
		require.Contains(t, view.status.GetText(true), "Sound: on")

		view.HandleKey(runeKey('s'))

		assert.Contains(t, view.status.GetText(true), "Sound: off")
	})
}

func TestView_Render(t *testing.T) {
	// Given: a game won by the opponent on the top row
	game := entity.NewGameState()
	game.Board = entity.Board{entity.PlayerO, entity.PlayerO, entity.PlayerO, entity.PlayerX, entity.PlayerX}
	game.Outcome = entity.Evaluate(game.Board)
	view := New(tview.NewApplication(), newMockController(), nil)

	// When: the snapshot is rendered
	view.Render(entity.Snapshot{Game: game, Phase: entity.PhaseTerminal, Score: entity.Score{Opponent: 1}})

	// Then: marks, cell numbers and the result are shown
	assert.Equal(t, " O ", view.board.GetCell(0, 0).Text)
	assert.Equal(t, " X ", view.board.GetCell(1, 0).Text)
	assert.Equal(t, " 9 ", view.board.GetCell(2, 2).Text)
	assert.Equal(t, tcell.ColorYellow, view.board.GetCell(0, 1).Color)
	assert.Contains(t, view.status.GetText(true), "Opponent wins")
	assert.Contains(t, view.status.GetText(true), "You 0 : 1 Opponent")
}

func TestStatusText(t *testing.T) {
	won := entity.NewGameState()
	won.Outcome = entity.Outcome{Status: entity.StatusWin, Winner: entity.HumanMark, Line: []int{0, 1, 2}}

	drawn := entity.NewGameState()
	drawn.Outcome = entity.Outcome{Status: entity.StatusDraw}

	tests := []struct {
		name     string
		snapshot entity.Snapshot
		want     string
	}{
		{name: "human turn", snapshot: entity.Snapshot{Game: entity.NewGameState()}, want: "Your turn"},
		{name: "thinking", snapshot: entity.Snapshot{Thinking: true}, want: "Opponent is thinking"},
		{name: "human wins", snapshot: entity.Snapshot{Game: won}, want: "You win!"},
		{name: "draw", snapshot: entity.Snapshot{Game: drawn}, want: "Draw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, StatusText(tt.snapshot, true), tt.want)
		})
	}
}

func TestView_Run(t *testing.T) {
	t.Run("Rings the bell on a win and a draw only", func(t *testing.T) {
		// Given: a transition stream with a move, a win, a reset and a draw
		controller := newMockController()
		rings := 0
		view := New(tview.NewApplication(), controller, func() { rings++ })

		for _, cue := range []entity.Cue{entity.CueMove, entity.CueWin, entity.CueReset, entity.CueDraw} {
			controller.updates <- entity.Snapshot{Cue: cue}
		}
		close(controller.updates)

		// When: the view consumes the stream
		view.Run(context.Background())

		// Then: the bell rang twice
		assert.Equal(t, 2, rings)
	})

	t.Run("Muted views stay silent", func(t *testing.T) {
		controller := newMockController()
		rings := 0
		view := New(tview.NewApplication(), controller, func() { rings++ })
		view.HandleKey(runeKey('s'))

		controller.updates <- entity.Snapshot{Cue: entity.CueWin}
		close(controller.updates)

		view.Run(context.Background())

		assert.Zero(t, rings)
	})
}
