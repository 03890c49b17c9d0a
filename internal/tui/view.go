// Package tui renders a game controller in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
)

const helpText = "[1-9]/enter play  [e]asy [h]ard [a]i  [r]eset  [s]ound  [q]uit"

type gameController interface {
	ApplyHumanMove(cell int) entity.Snapshot
	Reset() entity.Snapshot
	SetDifficulty(difficulty entity.Difficulty) entity.Snapshot
	Snapshot() entity.Snapshot
	Subscribe(ctx context.Context) (<-chan entity.Snapshot, func())
}

// View is the board, the status line and the key bindings of one local game.
type View struct {
	app        *tview.Application
	controller gameController
	bell       func()

	board  *tview.Table
	status *tview.TextView
	root   *tview.Flex

	mu      sync.Mutex
	soundOn bool
}

// New builds the view. bell is called on a win or a draw while sound is on.
func New(app *tview.Application, controller gameController, bell func()) *View {
	view := &View{
		app:        app,
		controller: controller,
		bell:       bell,
		board:      tview.NewTable(),
		status:     tview.NewTextView().SetDynamicColors(true),
		soundOn:    true,
	}

	view.board.SetBorders(true).SetSelectable(true, true)
	view.board.SetSelectedFunc(func(row, column int) {
		view.controller.ApplyHumanMove(row*3 + column)
	})

	view.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(view.board, 7, 0, true).
		AddItem(view.status, 0, 1, false)
	view.root.SetBorder(true).SetTitle(" tic-tac-toe ")
	view.root.SetInputCapture(view.HandleKey)

	view.Render(controller.Snapshot())

	return view
}

func (that *View) Root() tview.Primitive {
	return that.root
}

// Run redraws the view after every transition until ctx is done.
func (that *View) Run(ctx context.Context) {
	updates, unsubscribe := that.controller.Subscribe(ctx)
	defer unsubscribe()

	for snapshot := range updates {
		snapshot := snapshot
		that.app.QueueUpdateDraw(func() {
			that.Render(snapshot)
		})
		that.playCue(snapshot.Cue)
	}
}

// HandleKey maps key presses to controller operations. Keys it does not handle are passed on.
func (that *View) HandleKey(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() != tcell.KeyRune {
		return event
	}

	switch r := event.Rune(); {
	case r >= '1' && r <= '9':
		that.controller.ApplyHumanMove(int(r - '1'))
	case r == 'e':
		that.controller.SetDifficulty(entity.Easy)
	case r == 'h':
		that.controller.SetDifficulty(entity.Hard)
	case r == 'a':
		that.controller.SetDifficulty(entity.RemoteAI)
	case r == 'r':
		that.controller.Reset()
	case r == 's':
		that.toggleSound()
		that.Render(that.controller.Snapshot())
	case r == 'q':
		that.app.Stop()
	default:
		return event
	}

	return nil
}

// Render draws snapshot. It must run on the UI goroutine once the application is running.
func (that *View) Render(snapshot entity.Snapshot) {
	winning := make(map[int]bool, 3)
	for _, cell := range snapshot.Game.Outcome.Line {
		winning[cell] = true
	}

	for cell, mark := range snapshot.Game.Board {
		text := fmt.Sprintf(" %d ", cell+1)
		color := tcell.ColorGray
		switch mark {
		case entity.PlayerX:
			text, color = " X ", tcell.ColorGreen
		case entity.PlayerO:
			text, color = " O ", tcell.ColorRed
		}

		if winning[cell] {
			color = tcell.ColorYellow
		}

		that.board.SetCell(cell/3, cell%3, tview.NewTableCell(text).
			SetTextColor(color).
			SetAlign(tview.AlignCenter))
	}

	that.status.SetText(StatusText(snapshot, that.isSoundOn()))
}

// StatusText describes the phase, the tier and the score of snapshot.
func StatusText(snapshot entity.Snapshot, soundOn bool) string {
	var line string
	switch {
	case snapshot.Thinking:
		line = "[yellow]Opponent is thinking...[-]"
	case snapshot.Game.Outcome.Status == entity.StatusDraw:
		line = "[white]Draw[-]"
	case snapshot.Game.Outcome.Status == entity.StatusWin && snapshot.Game.Outcome.Winner == entity.HumanMark:
		line = "[green]You win![-]"
	case snapshot.Game.Outcome.Status == entity.StatusWin:
		line = "[red]Opponent wins[-]"
	default:
		line = "Your turn (X)"
	}

	sound := "off"
	if soundOn {
		sound = "on"
	}

	return strings.Join([]string{
		line,
		fmt.Sprintf("Difficulty: %s  Sound: %s", snapshot.Difficulty, sound),
		fmt.Sprintf("You %d : %d Opponent  Draws %d", snapshot.Score.Human, snapshot.Score.Opponent, snapshot.Score.Draws),
		helpText,
	}, "\n")
}

func (that *View) playCue(cue entity.Cue) {
	if cue != entity.CueWin && cue != entity.CueDraw {
		return
	}

	if that.isSoundOn() && that.bell != nil {
		that.bell()
	}
}

func (that *View) toggleSound() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.soundOn = !that.soundOn
}

func (that *View) isSoundOn() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.soundOn
}
