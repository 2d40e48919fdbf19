package types

import "github.com/DoyleJ11/rps-client/internal/engine"

// StateSnapshot (pushed to rendering clients on every change):
//   type: "StateSnapshot"
//   version: number
//   state: {
//     status: "connecting" | "waiting" | "playing" | "result"
//     status_message: string
//     selected_move?: Move
//     last_result?: { winner, moves: { player1, player2 } }
//     error_message?: string
//   }

const TypeStateSnapshot = "StateSnapshot"

type SnapshotMessage struct {
	Type    string       `json:"type"`
	Version int          `json:"version"`
	State   engine.State `json:"state"`
}
