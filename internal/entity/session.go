package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/rocketscienceinc/tictactoe-ai/internal/apperror"
)

type Difficulty string

const (
	Easy     Difficulty = "easy"
	Hard     Difficulty = "hard"
	RemoteAI Difficulty = "remote_ai"

	DefaultDifficulty = RemoteAI
)

func ParseDifficulty(value string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(value))); d {
	case Easy, Hard, RemoteAI:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", apperror.ErrUnknownDifficulty, value)
	}
}

func (that Difficulty) IsRemote() bool {
	return that == RemoteAI
}

type Phase string

const (
	PhaseHumanTurn        Phase = "human_turn"
	PhaseOpponentThinking Phase = "opponent_thinking"
	PhaseTerminal         Phase = "terminal"
)

// Cue tells the presentation layer which sound belongs to a transition.
type Cue string

const (
	CueNone  Cue = ""
	CueMove  Cue = "move"
	CueWin   Cue = "win"
	CueDraw  Cue = "draw"
	CueReset Cue = "reset"
)

func CueFor(outcome Outcome) Cue {
	switch outcome.Status {
	case StatusWin:
		return CueWin
	case StatusDraw:
		return CueDraw
	default:
		return CueMove
	}
}

type Score struct {
	Human    int `json:"human"`
	Opponent int `json:"opponent"`
	Draws    int `json:"draws"`
}

// Record counts a terminal outcome. In-progress outcomes are ignored.
func (that *Score) Record(outcome Outcome) {
	switch {
	case outcome.Status == StatusDraw:
		that.Draws++
	case outcome.Status == StatusWin && outcome.Winner == HumanMark:
		that.Human++
	case outcome.Status == StatusWin && outcome.Winner == OpponentMark:
		that.Opponent++
	}
}

// Snapshot is the read-only view of a session handed to presentation layers.
type Snapshot struct {
	SessionID  string     `json:"session_id,omitempty"`
	Game       GameState  `json:"game"`
	Phase      Phase      `json:"phase"`
	Thinking   bool       `json:"thinking"`
	Difficulty Difficulty `json:"difficulty"`
	Score      Score      `json:"score"`
	Cue        Cue        `json:"cue,omitempty"`
	Generation uint64     `json:"generation"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
