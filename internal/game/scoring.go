package game

import (
	"github.com/lox/blackjack/internal/deck"
)

// Blackjack is the highest total a hand can hold without busting.
const Blackjack = 21

// Total scores a hand with aces high. When that busts, the whole hand is
// rescored with every ace low; a hand without aces stays busted.
func Total(cards []deck.Card) int {
	total := sum(cards, false)
	if total > Blackjack {
		return sum(cards, true)
	}
	return total
}

// IsBust reports whether total exceeds Blackjack.
func IsBust(total int) bool {
	return total > Blackjack
}

func sum(cards []deck.Card, aceLow bool) int {
	total := 0
	for _, c := range cards {
		total += deck.Weight(c.Value, aceLow)
	}
	return total
}

// Hand is a seated player's cards as seen by winner determination.
type Hand struct {
	ID    string
	Email string
	Cards []deck.Card
}

// Result is a scored hand.
type Result struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Total      int    `json:"total"`
	CardsTotal int    `json:"cardsTotal"`
}

// Standings is the outcome of PossibleWinners.
type Standings struct {
	// Candidates are the non-busted hands tied on MaxTotal, narrowed to the
	// largest card count when more than one ties.
	Candidates []Result
	// Survivors are every non-busted hand, in input order.
	Survivors     []Result
	MaxTotal      int
	MaxCardsTotal int
}

// HasSurvivors reports whether any hand stayed at or under Blackjack.
func (s Standings) HasSurvivors() bool {
	return len(s.Survivors) > 0
}

// IsCandidate reports whether id is among the candidates.
func (s Standings) IsCandidate(id string) bool {
	for _, c := range s.Candidates {
		if c.ID == id {
			return true
		}
	}
	return false
}

// PossibleWinners scores hands and returns the players who could take the
// round against the dealer.
func PossibleWinners(hands []Hand) Standings {
	var st Standings
	for _, h := range hands {
		r := Result{ID: h.ID, Email: h.Email, Total: Total(h.Cards), CardsTotal: len(h.Cards)}
		if IsBust(r.Total) {
			continue
		}
		st.Survivors = append(st.Survivors, r)
		if len(st.Survivors) == 1 || r.Total > st.MaxTotal {
			st.MaxTotal = r.Total
		}
	}
	if !st.HasSurvivors() {
		return st
	}

	for _, r := range st.Survivors {
		if r.Total == st.MaxTotal {
			st.Candidates = append(st.Candidates, r)
		}
	}
	for _, r := range st.Candidates {
		if r.CardsTotal > st.MaxCardsTotal {
			st.MaxCardsTotal = r.CardsTotal
		}
	}
	if len(st.Candidates) > 1 {
		narrowed := st.Candidates[:0:0]
		for _, r := range st.Candidates {
			if r.CardsTotal == st.MaxCardsTotal {
				narrowed = append(narrowed, r)
			}
		}
		st.Candidates = narrowed
	}
	return st
}
