package table

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/player"
)

// PlayerView is a player as shown to the table, with the hand's total.
type PlayerView struct {
	ID                  string       `json:"id"`
	Email               string       `json:"email"`
	Score               player.Score `json:"score"`
	CurrentGameID       *string      `json:"currentGameId"`
	CurrentGamePosition int          `json:"currentGamePosition"`
	Cards               []deck.Card  `json:"cards"`
	Total               int          `json:"total"`
}

// NewPlayerView projects p.
func NewPlayerView(p player.Player) PlayerView {
	v := PlayerView{
		ID:                  p.ID,
		Email:               p.Email,
		Score:               p.Score,
		CurrentGamePosition: p.CurrentGamePosition,
		Cards:               append([]deck.Card{}, p.Cards...),
		Total:               game.Total(p.Cards),
	}
	if p.CurrentGameID != "" {
		id := p.CurrentGameID
		v.CurrentGameID = &id
	}
	return v
}

// DealerTotal is the dealer's score as players see it. It encodes as "-"
// while hidden and as a number otherwise.
type DealerTotal struct {
	Value  int
	Hidden bool
}

var hiddenTotal = []byte(`"-"`)

func (d DealerTotal) MarshalJSON() ([]byte, error) {
	if d.Hidden {
		return hiddenTotal, nil
	}
	return json.Marshal(d.Value)
}

func (d *DealerTotal) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), hiddenTotal) {
		*d = DealerTotal{Hidden: true}
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("dealer total: %w", err)
	}
	*d = DealerTotal{Value: v}
	return nil
}

func (d DealerTotal) String() string {
	if d.Hidden {
		return "-"
	}
	return fmt.Sprintf("%d", d.Value)
}

// State is the public projection of a game and its seated players.
type State struct {
	ID           string       `json:"id"`
	PlayerIDTurn *string      `json:"playerIdTurn"`
	WinnerIDs    []string     `json:"winnerIds"`
	DealerCards  []deck.Card  `json:"dealerCards"`
	Players      []PlayerView `json:"players"`
	DealerTotal  DealerTotal  `json:"dealerTotal"`
	ReadyToDeal  bool         `json:"readyToDeal"`
}

// NewState builds the projection of g with its members. The dealer's hole
// card and total stay hidden while a player holds the turn.
func NewState(g game.Game, members []player.Player) State {
	s := State{
		ID:          g.ID,
		WinnerIDs:   append([]string{}, g.WinnerIDs...),
		DealerCards: g.VisibleDealerCards(),
		Players:     make([]PlayerView, 0, len(members)),
		ReadyToDeal: g.ReadyToDeal(),
	}
	for _, m := range members {
		s.Players = append(s.Players, NewPlayerView(m))
	}

	if g.TurnActive() {
		turn := g.Turn
		s.PlayerIDTurn = &turn
		s.DealerTotal = DealerTotal{Hidden: true}
	} else {
		s.DealerTotal = DealerTotal{Value: game.Total(g.DealerCards)}
	}
	return s
}

// Turn returns the id of the player holding the turn, or "".
func (s State) Turn() string {
	if s.PlayerIDTurn == nil {
		return ""
	}
	return *s.PlayerIDTurn
}

// Player returns the view of the player with id.
func (s State) Player(id string) (PlayerView, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerView{}, false
}
