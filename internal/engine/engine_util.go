package engine

type Outcome string

const (
	OutcomeWon  Outcome = "won"
	OutcomeLost Outcome = "lost"
	OutcomeTie  Outcome = "tie"
)

// ResultText is total over the three winners; anything that is not a tie or
// a PLAYER1 win reads as the opponent winning.
func ResultText(r RoundResult) string {
	switch OutcomeOf(r) {
	case OutcomeTie:
		return MsgTie
	case OutcomeWon:
		return MsgYouWon
	default:
		return MsgOpponentWon
	}
}

// OutcomeOf reads a result from this client's side. The server always
// reports this client as PLAYER1.
func OutcomeOf(r RoundResult) Outcome {
	switch r.Winner {
	case WinnerTie:
		return OutcomeTie
	case WinnerPlayer1:
		return OutcomeWon
	default:
		return OutcomeLost
	}
}

func ContainsEffect(effects []Effect, effectType EffectType) bool {
	for _, effect := range effects {
		if effect.Type == effectType {
			return true
		}
	}
	return false
}
