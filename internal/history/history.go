// Package history keeps a log of finished rounds as seen by this client.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/rps-client/internal/engine"
)

var ErrStoreClosed = errors.New("history store closed")

type Round struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Winner      engine.Winner  `json:"winner" gorm:"size:16;not null"`
	Outcome     engine.Outcome `json:"outcome" gorm:"size:8;not null;index"`
	MyMove      engine.Move    `json:"my_move,omitempty" gorm:"size:16"`
	Player1Move engine.Move    `json:"player1_move" gorm:"size:16;not null"`
	Player2Move engine.Move    `json:"player2_move" gorm:"size:16;not null"`
	FinishedAt  time.Time      `json:"finished_at" gorm:"not null;index"`
}

func NewRound(myMove engine.Move, res engine.RoundResult, at time.Time) Round {
	return Round{
		Winner:      res.Winner,
		Outcome:     engine.OutcomeOf(res),
		MyMove:      myMove,
		Player1Move: res.Moves.Player1,
		Player2Move: res.Moves.Player2,
		FinishedAt:  at.UTC(),
	}
}

type Store interface {
	Save(ctx context.Context, r *Round) error
	// Recent returns up to limit rounds, newest first.
	Recent(ctx context.Context, limit int) ([]Round, error)
	Close() error
}
