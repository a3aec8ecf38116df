// Package player holds the Player entity and the service that seats players,
// deals them cards and keeps their score.
package player

import (
	"github.com/lox/blackjack/internal/deck"
)

// Score accumulates over a player's lifetime and never resets.
type Score struct {
	TotalWins         int `json:"totalWins"`
	TotalLosses       int `json:"totalLosses"`
	TotalGameFinished int `json:"totalGameFinished"`
}

// Player is a registered participant. A player is seated when CurrentGameID
// is set; CurrentGamePosition then orders turns within that game.
type Player struct {
	ID                  string
	Email               string
	Score               Score
	CurrentGameID       string
	CurrentGamePosition int
	Cards               []deck.Card
	Version             int64
}

// Clone returns a deep copy of p.
func (p Player) Clone() Player {
	out := p
	if p.Cards != nil {
		out.Cards = make([]deck.Card, len(p.Cards))
		copy(out.Cards, p.Cards)
	}
	return out
}

// Seated reports whether the player is part of a game.
func (p Player) Seated() bool {
	return p.CurrentGameID != ""
}

// InGame reports whether the player is seated in gameID.
func (p Player) InGame(gameID string) bool {
	return gameID != "" && p.CurrentGameID == gameID
}
