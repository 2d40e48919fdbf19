package engine

import (
	"errors"
	"strings"
)

var ErrNotPlaying = errors.New("not in playing phase")
var ErrMoveAlreadySelected = errors.New("move already selected this round")
var ErrInvalidMove = errors.New("invalid move")

type Status string

const (
	StatusConnecting Status = "connecting"
	StatusWaiting    Status = "waiting"
	StatusPlaying    Status = "playing"
	StatusResult     Status = "result"
)

type Move string

const (
	MoveRock     Move = "ROCK"
	MovePaper    Move = "PAPER"
	MoveScissors Move = "SCISSORS"
)

var Moves = []Move{MoveRock, MovePaper, MoveScissors}

type Winner string

const (
	WinnerPlayer1 Winner = "PLAYER1"
	WinnerPlayer2 Winner = "PLAYER2"
	WinnerTie     Winner = "TIE"
)

type RoundMoves struct {
	Player1 Move `json:"player1"`
	Player2 Move `json:"player2"`
}

type RoundResult struct {
	Winner Winner     `json:"winner"`
	Moves  RoundMoves `json:"moves"`
}

// State is the client's whole view of the game. Empty SelectedMove and
// ErrorMessage mean absent, as does a nil LastResult.
type State struct {
	Status        Status       `json:"status"`
	StatusMessage string       `json:"status_message"`
	SelectedMove  Move         `json:"selected_move,omitempty"`
	LastResult    *RoundResult `json:"last_result,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
}

const (
	MsgConnecting   = "Connecting to game server..."
	MsgWaiting      = "Waiting for opponent..."
	MsgGameStarted  = "Game started! Make your move."
	MsgNextGame     = "Waiting for next game..."
	MsgReconnecting = "Connection lost. Reconnecting..."
	ErrMsgLost      = "Connection to game server lost"
	ErrMsgTransport = "Error connecting to game server"
	MsgTie          = "It's a tie!"
	MsgYouWon       = "You won! 🎉"
	MsgOpponentWon  = "Opponent won!"
)

/*
	Opened             -> (connecting) waiting
	Closed             -> connecting, EffCancelPhaseTimer
	TransportError     -> error text only
	GameStart          -> (waiting|result) playing, EffCancelPhaseTimer
	GameResult         -> (playing) result, EffArmPhaseTimer + EffRecordResult
	PhaseTimerElapsed  -> (result) waiting
	Unknown            -> nothing
	Submit (command)   -> EffSendMove
*/

type Event interface{ isEvent() }

type Opened struct{}

type Closed struct{}

type TransportError struct{ Err error }

type GameStart struct{}

type GameResult struct{ Result RoundResult }

type Unknown struct{ Type string }

type PhaseTimerElapsed struct{}

func (Opened) isEvent()            {}
func (Closed) isEvent()            {}
func (TransportError) isEvent()    {}
func (GameStart) isEvent()         {}
func (GameResult) isEvent()        {}
func (Unknown) isEvent()           {}
func (PhaseTimerElapsed) isEvent() {}

type EffectType string

const (
	EffSendMove         EffectType = "SendMove"
	EffArmPhaseTimer    EffectType = "ArmPhaseTimer"
	EffCancelPhaseTimer EffectType = "CancelPhaseTimer"
	EffRecordResult     EffectType = "RecordResult"
)

type Effect struct {
	Type   EffectType
	Move   Move
	Result *RoundResult
}

func NewState() State {
	return State{Status: StatusConnecting, StatusMessage: MsgConnecting}
}

// Apply folds one event into s. Events that do not fit the current phase
// leave s untouched and return changed=false.
func Apply(s State, ev Event) (State, []Effect, bool) {
	next := s

	switch e := ev.(type) {
	case Opened:
		if s.Status != StatusConnecting {
			return s, nil, false
		}
		next.Status = StatusWaiting
		next.StatusMessage = MsgWaiting
		next.ErrorMessage = ""
		return next, nil, true

	case Closed:
		next.Status = StatusConnecting
		next.StatusMessage = MsgReconnecting
		next.ErrorMessage = ErrMsgLost
		next.SelectedMove = ""
		next.LastResult = nil
		return next, []Effect{{Type: EffCancelPhaseTimer}}, true

	case TransportError:
		next.ErrorMessage = ErrMsgTransport
		return next, nil, next != s

	case GameStart:
		if s.Status != StatusWaiting && s.Status != StatusResult {
			return s, nil, false
		}
		next.Status = StatusPlaying
		next.StatusMessage = MsgGameStarted
		next.ErrorMessage = ""
		next.SelectedMove = ""
		next.LastResult = nil
		var effects []Effect
		if s.Status == StatusResult {
			effects = append(effects, Effect{Type: EffCancelPhaseTimer})
		}
		return next, effects, true

	case GameResult:
		if s.Status != StatusPlaying {
			return s, nil, false
		}
		res := e.Result
		next.Status = StatusResult
		next.LastResult = &res
		next.StatusMessage = ResultText(res)
		return next, []Effect{
			{Type: EffArmPhaseTimer},
			{Type: EffRecordResult, Move: s.SelectedMove, Result: &res},
		}, true

	case PhaseTimerElapsed:
		if s.Status != StatusResult {
			return s, nil, false
		}
		next.Status = StatusWaiting
		next.StatusMessage = MsgNextGame
		next.ErrorMessage = ""
		next.LastResult = nil
		next.SelectedMove = ""
		return next, nil, true

	default:
		// Unknown and anything else never mutate.
		return s, nil, false
	}
}

// Submit applies the one-move-per-round guard.
func Submit(s State, m Move) (State, []Effect, error) {
	if !m.Valid() {
		return s, nil, ErrInvalidMove
	}
	if s.Status != StatusPlaying {
		return s, nil, ErrNotPlaying
	}
	if s.SelectedMove != "" {
		return s, nil, ErrMoveAlreadySelected
	}

	next := s
	next.SelectedMove = m
	next.StatusMessage = MsgWaiting
	return next, []Effect{{Type: EffSendMove, Move: m}}, nil
}

func (m Move) Valid() bool {
	switch m {
	case MoveRock, MovePaper, MoveScissors:
		return true
	}
	return false
}

// ParseMove accepts any letter case, the wire form is upper case.
func ParseMove(s string) (Move, error) {
	m := Move(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", ErrInvalidMove
	}
	return m, nil
}

func (w Winner) Valid() bool {
	switch w {
	case WinnerPlayer1, WinnerPlayer2, WinnerTie:
		return true
	}
	return false
}
