package game

import (
	"github.com/lox/blackjack/internal/deck"
)

// DealerID is recorded in WinnerIDs when the dealer takes the round.
const DealerID = "dealer"

// Game is the authoritative state of one round at a table. Values handed out
// by the engine are deep copies; mutating one never affects stored state.
type Game struct {
	ID          string
	Deck        deck.Deck
	DealerCards []deck.Card
	// Turn holds the id of the player who must act, or "" when no player
	// turn is active (before seating, during dealer play, once settled).
	Turn      string
	WinnerIDs []string
	// Version is the store version this snapshot was read at.
	Version int64
}

// Clone returns a deep copy of g.
func (g Game) Clone() Game {
	out := g
	out.DealerCards = cloneCards(g.DealerCards)
	if g.WinnerIDs != nil {
		out.WinnerIDs = append([]string(nil), g.WinnerIDs...)
	}
	return out
}

// TurnActive reports whether a player currently holds the turn.
func (g Game) TurnActive() bool {
	return g.Turn != ""
}

// ReadyToDeal reports whether a fresh deal may start: nothing has been dealt
// yet or no player turn is active.
func (g Game) ReadyToDeal() bool {
	return len(g.DealerCards) == 0 || !g.TurnActive()
}

// Settled reports whether winners have been recorded for the round.
func (g Game) Settled() bool {
	return len(g.WinnerIDs) > 0
}

// VisibleDealerCards returns the dealer's hand as players may see it: the
// first card is face down while a player turn is active.
func (g Game) VisibleDealerCards() []deck.Card {
	cards := cloneCards(g.DealerCards)
	if cards == nil {
		cards = []deck.Card{}
	}
	if g.TurnActive() && len(cards) > 0 {
		cards[0] = deck.Masked
	}
	return cards
}

func cloneCards(cards []deck.Card) []deck.Card {
	if cards == nil {
		return nil
	}
	out := make([]deck.Card, len(cards))
	copy(out, cards)
	return out
}

// PublicGame is the player-facing view of a game.
type PublicGame struct {
	ID          string      `json:"id"`
	Turn        string      `json:"playerIdTurn,omitempty"`
	WinnerIDs   []string    `json:"winnerIds"`
	DealerCards []deck.Card `json:"dealerCards"`
}

// Public projects g for players, masking the hole card while a turn is active.
func (g Game) Public() PublicGame {
	winners := append([]string{}, g.WinnerIDs...)
	return PublicGame{
		ID:          g.ID,
		Turn:        g.Turn,
		WinnerIDs:   winners,
		DealerCards: g.VisibleDealerCards(),
	}
}
