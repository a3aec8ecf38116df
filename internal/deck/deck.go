package deck

import (
	"errors"
	"fmt"
	"math"

	"github.com/lox/blackjack/internal/randutil"
)

// StandardSize is the number of cards in one standard set.
const StandardSize = 52

// ErrInvalidDecksAmount is returned when a deck is requested with fewer than
// one standard set.
var ErrInvalidDecksAmount = errors.New("deck: decks amount must be positive")

// Deck is an ordered, immutable sequence of cards. Every operation that would
// change it returns a new Deck instead.
type Deck struct {
	cards []Card
}

// New builds decksAmount concatenated 52-card sets in suit/rank order.
func New(decksAmount int) (Deck, error) {
	if decksAmount <= 0 {
		return Deck{}, fmt.Errorf("%w: got %d", ErrInvalidDecksAmount, decksAmount)
	}
	if decksAmount > math.MaxInt/StandardSize {
		return Deck{}, fmt.Errorf("%w: %d sets overflow the deck size", ErrInvalidDecksAmount, decksAmount)
	}

	cards := make([]Card, 0, StandardSize*decksAmount)
	for i := 0; i < decksAmount; i++ {
		for _, suit := range Suits {
			for _, rank := range Ranks {
				cards = append(cards, NewCard(suit, rank))
			}
		}
	}

	return Deck{cards: cards}, nil
}

// FromSource validates cards and adopts a private copy of them as a Deck.
func FromSource(cards []Card) (Deck, error) {
	if err := Validate(cards); err != nil {
		return Deck{}, err
	}
	return Deck{cards: clone(cards)}, nil
}

// Shuffle returns a uniformly random permutation of the deck using src.
func (d Deck) Shuffle(src randutil.Source) (Deck, error) {
	if err := Validate(d.cards); err != nil {
		return Deck{}, err
	}

	cards := clone(d.cards)
	for i := len(cards) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}

	return Deck{cards: cards}, nil
}

// Draw removes the top card, returning it and the remaining deck.
func (d Deck) Draw() (Card, Deck, bool) {
	if len(d.cards) == 0 {
		return Card{}, d, false
	}
	return d.cards[0], Deck{cards: clone(d.cards[1:])}, true
}

// PushFront returns a deck with card placed on top.
func (d Deck) PushFront(card Card) Deck {
	cards := make([]Card, 0, len(d.cards)+1)
	cards = append(cards, card)
	cards = append(cards, d.cards...)
	return Deck{cards: cards}
}

// Cards returns a copy of the cards in order, top first.
func (d Deck) Cards() []Card {
	return clone(d.cards)
}

// Len returns the number of cards left in the deck
func (d Deck) Len() int {
	return len(d.cards)
}

// IsEmpty returns true if the deck has no cards left
func (d Deck) IsEmpty() bool {
	return len(d.cards) == 0
}

// Peek returns the top card without removing it from the deck
func (d Deck) Peek() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	return d.cards[0], true
}

func clone(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}
