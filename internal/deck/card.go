package deck

import (
	"fmt"
	"strconv"
)

// Suit represents a card suit
type Suit string

const (
	Hearts   Suit = "Hearts"
	Diamonds Suit = "Diamonds"
	Clubs    Suit = "Clubs"
	Spades   Suit = "Spades"
)

// Suits lists the suits in deck construction order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

// Rank represents a card value as it appears in a card title
type Rank string

const (
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "Jack"
	Queen Rank = "Queen"
	King  Rank = "King"
	Ace   Rank = "Ace"
)

// Ranks lists the ranks in deck construction order.
var Ranks = []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

var knownRanks = func() map[Rank]bool {
	m := make(map[Rank]bool, len(Ranks))
	for _, r := range Ranks {
		m[r] = true
	}
	return m
}()

var knownTitles = func() map[string]bool {
	m := make(map[string]bool, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, r := range Ranks {
			m[title(r, s)] = true
		}
	}
	return m
}()

// Valid reports whether r is one of the thirteen standard ranks.
func (r Rank) Valid() bool {
	return knownRanks[r]
}

// String returns the string representation of a rank
func (r Rank) String() string {
	return string(r)
}

// Card represents a playing card. Cards are values; copying one never
// aliases another holder's state.
type Card struct {
	Title string `json:"title"`
	Value Rank   `json:"value"`
}

// NewCard creates a new card
func NewCard(suit Suit, rank Rank) Card {
	return Card{Title: title(rank, suit), Value: rank}
}

// Masked is the placeholder shown instead of a face-down card.
var Masked = Card{Title: "*", Value: "*"}

// String returns the card title (e.g., "Ace of Spades")
func (c Card) String() string {
	return c.Title
}

// Weight converts a rank to its blackjack point value. Aces count 11 unless
// aceLow is set. Unknown ranks weigh nothing.
func Weight(rank Rank, aceLow bool) int {
	switch rank {
	case Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten:
		n, _ := strconv.Atoi(string(rank))
		return n
	case Jack, Queen, King:
		return 10
	case Ace:
		if aceLow {
			return 1
		}
		return 11
	default:
		return 0
	}
}

func title(r Rank, s Suit) string {
	return fmt.Sprintf("%s of %s", r, s)
}
