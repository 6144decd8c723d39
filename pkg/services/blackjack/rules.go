package blackjack

import (
	"strconv"

	"github.com/mportillo/dealerd/pkg/entities"
)

const (
	StandardDecks    = 6  // Number of 52-card decks in the shoe
	BlackjackScore   = 21 // Target score
	DealerStandScore = 17 // Dealer draws while below this score
)

// CardValue returns the counting value of a card: aces count 11 here,
// soft-ace reduction happens in BestScore
func CardValue(card *entities.Card) int {
	switch card.Rank {
	case entities.Ace:
		return 11
	case entities.Jack, entities.Queen, entities.King:
		return 10
	default:
		val, _ := strconv.Atoi(string(card.Rank))
		return val
	}
}

// IsAce reports whether the card is an ace
func IsAce(card *entities.Card) bool {
	return card.Rank == entities.Ace
}

// BestScore computes the best blackjack score for a hand. Cards still
// hidden are ignored entirely. Aces count 11, then while the total
// exceeds 21 one ace at a time is re-counted as 1.
func BestScore(cards []*entities.Card) int {
	score := 0
	softAces := 0

	for _, card := range cards {
		if card.Hidden {
			continue
		}
		if IsAce(card) {
			score += 11
			softAces++
		} else {
			score += CardValue(card)
		}
	}

	for score > BlackjackScore && softAces > 0 {
		score -= 10
		softAces--
	}

	return score
}

// IsNatural reports whether a two-card hand totals 21
func IsNatural(cards []*entities.Card) bool {
	return len(cards) == 2 && BestScore(cards) == BlackjackScore
}

// IsBust reports whether a hand exceeds 21
func IsBust(cards []*entities.Card) bool {
	return BestScore(cards) > BlackjackScore
}

// NewShoe creates a new shuffled shoe of StandardDecks concatenated decks
func NewShoe() *entities.Deck {
	deck := entities.NewDeck()

	for i := 1; i < StandardDecks; i++ {
		deck.Cards = append(deck.Cards, entities.NewDeck().Cards...)
	}

	deck.Shuffle()
	return deck
}
