package blackjack

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mportillo/dealerd/internal/types"
	"github.com/mportillo/dealerd/pkg/entities"
)

// CompletionSink receives terminal session outcomes. Implementations
// must not block: payout issuance is decoupled from the caller path.
type CompletionSink interface {
	SessionCompleted(playerID, sessionID string, result entities.Result)
}

// validTransitions is the session state machine. Any transition not
// listed here is rejected and the session is left unchanged.
var validTransitions = map[entities.SessionState][]entities.SessionState{
	entities.StateWaitingForBet: {entities.StatePlayerTurn},
	entities.StatePlayerTurn:    {entities.StateDealerTurn, entities.StateGameEnded},
	entities.StateDealerTurn:    {entities.StateGameEnded},
	entities.StateGameEnded:     {},
}

// Session is one player's game from creation to terminal outcome. All
// actions are serialized by the session's own lock, including the full
// dealer draw loop inside Stand.
type Session struct {
	ID        string
	PlayerID  string
	BetAmount int64

	mu           sync.Mutex
	state        entities.SessionState
	result       entities.Result
	rewardPaid   bool
	completed    bool
	notified     bool
	deck         *entities.Deck
	playerHand   []*entities.Card
	dealerHand   []*entities.Card
	stateHistory []entities.SessionState
	sink         CompletionSink
}

// NewSession creates a fully dealt session in PLAYER_TURN. A dealt
// natural 21 ends the session immediately as a win; the dealer's cards
// are never compared against a natural.
func NewSession(playerID string, betAmount int64, sink CompletionSink) *Session {
	return newSession(playerID, betAmount, NewShoe(), sink)
}

func newSession(playerID string, betAmount int64, deck *entities.Deck, sink CompletionSink) *Session {
	s := &Session{
		ID:           uuid.New().String(),
		PlayerID:     playerID,
		BetAmount:    betAmount,
		state:        entities.StatePlayerTurn,
		deck:         deck,
		playerHand:   make([]*entities.Card, 0, 2),
		dealerHand:   make([]*entities.Card, 0, 2),
		stateHistory: []entities.SessionState{entities.StatePlayerTurn},
		sink:         sink,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.playerHand = append(s.playerHand, s.mustDraw(), s.mustDraw())
	s.dealerHand = append(s.dealerHand, s.mustDraw())
	hole := s.mustDraw()
	hole.Hidden = true
	s.dealerHand = append(s.dealerHand, hole)

	if IsNatural(s.playerHand) {
		s.endGameLocked(entities.ResultWin)
	}

	return s
}

// mustDraw is only used during dealing, where a fresh shoe cannot be empty
func (s *Session) mustDraw() *entities.Card {
	card := s.deck.Draw()
	if card == nil {
		panic("deck exhausted while dealing from a fresh shoe")
	}
	return card
}

// Hit draws one card for the player. A resulting score over 21 ends the
// session as a loss; exactly 21 ends it as a win without dealer play.
func (s *Session) Hit() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePlayerTurnLocked("hit"); err != nil {
		return nil, err
	}

	card := s.deck.Draw()
	if card == nil {
		return nil, types.NewGameError(types.ErrDeckExhausted, "deck exhausted during hit")
	}
	s.playerHand = append(s.playerHand, card)

	score := BestScore(s.playerHand)
	switch {
	case score > BlackjackScore:
		s.endGameLocked(entities.ResultLoss)
	case score == BlackjackScore:
		s.endGameLocked(entities.ResultWin)
	}

	return s.snapshotLocked(), nil
}

// Stand ends the player's turn, reveals the dealer's cards, and plays
// out the dealer deterministically: the dealer draws while below 17 and
// never draws at 17 or above. The dealer wins exact ties.
func (s *Session) Stand() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePlayerTurnLocked("stand"); err != nil {
		return nil, err
	}

	if err := s.transitionLocked(entities.StateDealerTurn); err != nil {
		return nil, err
	}

	for _, card := range s.dealerHand {
		card.Reveal()
	}

	for BestScore(s.dealerHand) < DealerStandScore {
		card := s.deck.Draw()
		if card == nil {
			return nil, types.NewGameError(types.ErrDeckExhausted, "deck exhausted during dealer draw")
		}
		s.dealerHand = append(s.dealerHand, card)
	}

	playerScore := BestScore(s.playerHand)
	dealerScore := BestScore(s.dealerHand)

	result := entities.ResultLoss
	if dealerScore > BlackjackScore || playerScore > dealerScore {
		result = entities.ResultWin
	}
	s.endGameLocked(result)

	return s.snapshotLocked(), nil
}

// ForceComplete ends a live session with the given result through the
// same terminal path as organic play. Development use only.
func (s *Session) ForceComplete(result entities.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return types.NewGameError(types.ErrSessionCompleted, "session already completed")
	}

	for _, card := range s.dealerHand {
		card.Reveal()
	}
	s.endGameLocked(result)
	return nil
}

// requirePlayerTurnLocked validates that a player action is legal now
func (s *Session) requirePlayerTurnLocked(action string) error {
	if s.completed {
		return types.NewGameError(types.ErrSessionCompleted,
			fmt.Sprintf("cannot %s: session already completed", action))
	}
	if s.state != entities.StatePlayerTurn {
		return types.NewGameError(types.ErrInvalidStateForAction,
			fmt.Sprintf("cannot %s in state %s", action, s.state))
	}
	return nil
}

// transitionLocked moves the state machine, rejecting any transition
// not in the table and leaving the session unchanged on rejection
func (s *Session) transitionLocked(to entities.SessionState) error {
	for _, allowed := range validTransitions[s.state] {
		if allowed == to {
			s.state = to
			s.stateHistory = append(s.stateHistory, to)
			return nil
		}
	}
	return types.NewGameError(types.ErrInvalidTransition,
		fmt.Sprintf("invalid transition %s -> %s", s.state, to))
}

// endGameLocked performs the terminal transition and the single
// mark-completed side effect. Repeated calls never re-notify the sink.
func (s *Session) endGameLocked(result entities.Result) {
	if s.state != entities.StateGameEnded {
		if err := s.transitionLocked(entities.StateGameEnded); err != nil {
			return
		}
	}
	s.result = result
	s.completed = true

	if !s.notified {
		s.notified = true
		if s.sink != nil {
			s.sink.SessionCompleted(s.PlayerID, s.ID, result)
		}
	}
}

// State returns the current session state
func (s *Session) State() entities.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the terminal outcome; meaningful only once completed
func (s *Session) Result() entities.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Completed reports whether the session reached GAME_ENDED
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// MarkRewardPaid records that the payout for this session landed.
// Called best-effort by the reward coordinator.
func (s *Session) MarkRewardPaid() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewardPaid = true
}

// RewardPaid reports whether the payout landed
func (s *Session) RewardPaid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewardPaid
}
