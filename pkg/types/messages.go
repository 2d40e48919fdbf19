package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/rps-client/internal/engine"
)

// Server -> Client
// GAME_START:
//   type: "GAME_START"
//
// GAME_RESULT:
//   type: "GAME_RESULT"
//   winner: "PLAYER1" | "PLAYER2" | "TIE"
//   moves: { player1: Move, player2: Move }
//
// Anything else is tolerated and ignored.

// Client -> Server
// move:
//   action: "move"
//   move: "ROCK" | "PAPER" | "SCISSORS"

const (
	TypeGameStart  = "GAME_START"
	TypeGameResult = "GAME_RESULT"

	ActionMove = "move"
)

var ErrMalformed = errors.New("malformed frame")

type ServerMessage struct {
	Type   string        `json:"type"`
	Winner string        `json:"winner,omitempty"`
	Moves  *MovesPayload `json:"moves,omitempty"`
}

type MovesPayload struct {
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
}

type ClientMessage struct {
	Action string `json:"action"`
	Move   string `json:"move"`
}

// Decode turns one inbound frame into a session event. Frames that are not
// JSON objects, lack a type, or carry an unusable GAME_RESULT wrap
// ErrMalformed; unrecognised types decode to engine.Unknown.
func Decode(raw []byte) (engine.Event, error) {
	var sm ServerMessage
	if err := json.Unmarshal(raw, &sm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch sm.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	case TypeGameStart:
		return engine.GameStart{}, nil
	case TypeGameResult:
		res, err := toRoundResult(sm)
		if err != nil {
			return nil, err
		}
		return engine.GameResult{Result: res}, nil
	default:
		return engine.Unknown{Type: sm.Type}, nil
	}
}

func toRoundResult(sm ServerMessage) (engine.RoundResult, error) {
	winner := engine.Winner(sm.Winner)
	if !winner.Valid() {
		return engine.RoundResult{}, fmt.Errorf("%w: winner %q", ErrMalformed, sm.Winner)
	}
	if sm.Moves == nil {
		return engine.RoundResult{}, fmt.Errorf("%w: missing moves", ErrMalformed)
	}

	p1, p2 := engine.Move(sm.Moves.Player1), engine.Move(sm.Moves.Player2)
	if !p1.Valid() || !p2.Valid() {
		return engine.RoundResult{}, fmt.Errorf("%w: moves %q/%q", ErrMalformed, sm.Moves.Player1, sm.Moves.Player2)
	}

	return engine.RoundResult{
		Winner: winner,
		Moves:  engine.RoundMoves{Player1: p1, Player2: p2},
	}, nil
}

func EncodeMove(m engine.Move) ([]byte, error) {
	if !m.Valid() {
		return nil, engine.ErrInvalidMove
	}
	return json.Marshal(ClientMessage{Action: ActionMove, Move: string(m)})
}
