package entities

// SessionState represents a phase of a blackjack session
type SessionState string

const (
	StateWaitingForBet SessionState = "WAITING_FOR_BET"
	StatePlayerTurn    SessionState = "PLAYER_TURN"
	StateDealerTurn    SessionState = "DEALER_TURN"
	StateGameEnded     SessionState = "GAME_ENDED"
)

// Result represents the terminal outcome of a session
type Result string

const (
	ResultWin  Result = "WIN"
	ResultLoss Result = "LOSS"
)

// String returns the string representation of the result
func (r Result) String() string {
	return string(r)
}

// IsWin returns true if this result represents a win
func (r Result) IsWin() bool {
	return r == ResultWin
}
