package blackjack

import "github.com/mportillo/dealerd/pkg/entities"

// CardView is the external representation of a card. A hidden card is
// reported only as hidden: rank and suit are withheld until reveal.
type CardView struct {
	Suit   string `json:"suit,omitempty"`
	Rank   string `json:"rank,omitempty"`
	Hidden bool   `json:"hidden"`
}

// Snapshot is the external view of a session
type Snapshot struct {
	SessionID    string                  `json:"session_id"`
	PlayerID     string                  `json:"player_id"`
	State        entities.SessionState   `json:"state"`
	Result       entities.Result         `json:"result,omitempty"`
	PlayerHand   []CardView              `json:"player_hand"`
	DealerHand   []CardView              `json:"dealer_hand"`
	PlayerScore  int                     `json:"player_score"`
	DealerScore  int                     `json:"dealer_score"`
	BetAmount    int64                   `json:"bet_amount"`
	RewardPaid   bool                    `json:"reward_paid"`
	Completed    bool                    `json:"completed"`
	StateHistory []entities.SessionState `json:"state_history"`
}

// Snapshot returns the external view of the session. The dealer's hole
// card is never observable through this path before reveal.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *Snapshot {
	history := make([]entities.SessionState, len(s.stateHistory))
	copy(history, s.stateHistory)

	return &Snapshot{
		SessionID:    s.ID,
		PlayerID:     s.PlayerID,
		State:        s.state,
		Result:       s.result,
		PlayerHand:   viewCards(s.playerHand),
		DealerHand:   viewCards(s.dealerHand),
		PlayerScore:  BestScore(s.playerHand),
		DealerScore:  BestScore(s.dealerHand),
		BetAmount:    s.BetAmount,
		RewardPaid:   s.rewardPaid,
		Completed:    s.completed,
		StateHistory: history,
	}
}

func viewCards(cards []*entities.Card) []CardView {
	views := make([]CardView, 0, len(cards))
	for _, card := range cards {
		if card.Hidden {
			views = append(views, CardView{Hidden: true})
			continue
		}
		views = append(views, CardView{
			Suit: string(card.Suit),
			Rank: string(card.Rank),
		})
	}
	return views
}
