package entities

import "fmt"

// Suit represents a card suit
type Suit string

const (
	Hearts   Suit = "HEARTS"
	Diamonds Suit = "DIAMONDS"
	Clubs    Suit = "CLUBS"
	Spades   Suit = "SPADES"
)

// Rank represents a card rank
type Rank string

const (
	Ace   Rank = "A"
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
)

// Card represents a playing card. A card is immutable once dealt except
// for the Hidden flag, which is flipped exactly once when the dealer's
// hole card is revealed.
type Card struct {
	Suit   Suit
	Rank   Rank
	Hidden bool
}

// NewCard creates a new face-up card
func NewCard(suit Suit, rank Rank) *Card {
	return &Card{
		Suit: suit,
		Rank: rank,
	}
}

// Reveal flips the hidden flag so the card becomes externally visible
func (c *Card) Reveal() {
	c.Hidden = false
}

// String returns the string representation of the card. Hidden cards
// never leak their rank or suit through this path.
func (c *Card) String() string {
	if c.Hidden {
		return "hidden"
	}
	return fmt.Sprintf("%s of %s", c.Rank, c.Suit)
}
