package apperror

import "errors"

var (
	ErrGameFinished          = errors.New("game is already finished")
	ErrNotYourTurn           = errors.New("it's not your turn")
	ErrCellOccupied          = errors.New("cell is already occupied")
	ErrInvalidCell           = errors.New("invalid cell index")
	ErrUnknownDifficulty     = errors.New("unknown difficulty")
	ErrSessionNotFound       = errors.New("session not found")
	ErrUnsupportedDifficulty = errors.New("difficulty is not supported by this selector")
)
