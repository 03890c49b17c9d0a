package service

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/rocketscienceinc/tictactoe-ai/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-ai/internal/entity"
)

var ErrNoAvailableMoves = errors.New("no available moves")

type BotService interface {
	SelectMove(board entity.Board, difficulty entity.Difficulty) (int, error)
}

type botService struct {
	intn func(n int) int
}

func NewBotService() BotService {
	return &botService{intn: rand.Intn}
}

// NewBotServiceWithRandom uses intn instead of the package level source. intn(n) must return a value in [0, n).
func NewBotServiceWithRandom(intn func(n int) int) BotService {
	return &botService{intn: intn}
}

func (that *botService) SelectMove(board entity.Board, difficulty entity.Difficulty) (int, error) {
	availableCells := board.EmptyCells()
	if len(availableCells) == 0 {
		return -1, ErrNoAvailableMoves
	}

	switch difficulty {
	case entity.Easy:
		return that.randomCell(availableCells), nil
	case entity.Hard:
		return that.greedyCell(board, availableCells), nil
	default:
		return -1, fmt.Errorf("%w: %s", apperror.ErrUnsupportedDifficulty, difficulty)
	}
}

// greedyCell looks one ply ahead: win, block, center, anything.
func (that *botService) greedyCell(board entity.Board, availableCells []int) int {
	if cell, ok := completingCell(board, entity.OpponentMark); ok {
		return cell
	}

	if cell, ok := completingCell(board, entity.HumanMark); ok {
		return cell
	}

	if board[entity.CenterCell] == entity.EmptyCell {
		return entity.CenterCell
	}

	return that.randomCell(availableCells)
}

func (that *botService) randomCell(availableCells []int) int {
	return availableCells[that.intn(len(availableCells))]
}

// completingCell finds the first triple holding two marks and one empty cell.
func completingCell(board entity.Board, mark entity.Mark) (int, bool) {
	for _, combo := range entity.WinCombos {
		marks, empty := 0, -1
		for _, cell := range combo {
			switch board[cell] {
			case mark:
				marks++
			case entity.EmptyCell:
				empty = cell
			}
		}

		if marks == 2 && empty != -1 {
			return empty, true
		}
	}

	return -1, false
}
