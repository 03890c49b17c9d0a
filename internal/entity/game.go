package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-ai/internal/apperror"
)

type Mark string

const (
	PlayerX   Mark = "X"
	PlayerO   Mark = "O"
	EmptyCell Mark = ""

	// HumanMark always moves first.
	HumanMark    = PlayerX
	OpponentMark = PlayerO

	CenterCell = 4
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusWin        Status = "win"
	StatusDraw       Status = "draw"
)

// WinCombos is scanned in order; the first satisfied triple decides the winner.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

type Board [9]Mark

// EmptyCells returns the indexes of the empty cells in ascending order.
func (that Board) EmptyCells() []int {
	cells := make([]int, 0, len(that))
	for i, cell := range that {
		if cell == EmptyCell {
			cells = append(cells, i)
		}
	}

	return cells
}

// FirstEmpty returns the lowest empty index or -1 for a full board.
func (that Board) FirstEmpty() int {
	for i, cell := range that {
		if cell == EmptyCell {
			return i
		}
	}

	return -1
}

func (that Board) IsFull() bool {
	return that.FirstEmpty() == -1
}

func (that Board) Count(mark Mark) int {
	count := 0
	for _, cell := range that {
		if cell == mark {
			count++
		}
	}

	return count
}

type Outcome struct {
	Status Status `json:"status"`
	Winner Mark   `json:"winner,omitempty"`
	Line   []int  `json:"winning_line,omitempty"`
}

func (that Outcome) IsTerminal() bool {
	return that.Status == StatusWin || that.Status == StatusDraw
}

// Evaluate determines the outcome of a board. It has no side effects.
func Evaluate(board Board) Outcome {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return Outcome{
				Status: StatusWin,
				Winner: a,
				Line:   []int{combo[0], combo[1], combo[2]},
			}
		}
	}

	// the game will continue until all the squares are full
	if !board.IsFull() {
		return Outcome{Status: StatusInProgress}
	}

	return Outcome{Status: StatusDraw}
}

type GameState struct {
	Board   Board   `json:"board"`
	Turn    Mark    `json:"player_turn"`
	Outcome Outcome `json:"outcome"`
}

func NewGameState() GameState {
	return GameState{
		Turn:    HumanMark,
		Outcome: Outcome{Status: StatusInProgress},
	}
}

// Place puts mark on cell, hands the turn to the other mark and re-evaluates the outcome.
func (that *GameState) Place(mark Mark, cell int) error {
	if that.Outcome.IsTerminal() {
		return apperror.ErrGameFinished
	}

	if cell < 0 || cell >= len(that.Board) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if that.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if that.Board[cell] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	that.Board[cell] = mark
	that.Turn = ToggleMark(mark)

	that.Outcome = Evaluate(that.Board)
	if that.Outcome.IsTerminal() {
		that.Turn = EmptyCell
	}

	return nil
}

func (that *GameState) IsFinished() bool {
	return that.Outcome.IsTerminal()
}

func ToggleMark(current Mark) Mark {
	if current == PlayerX {
		return PlayerO
	}
	return PlayerX
}
