package game

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/store"
)

// record is the persisted shape of a Game.
type record struct {
	Deck         json.RawMessage `json:"deck"`
	DealerCards  json.RawMessage `json:"dealerCards"`
	PlayerIDTurn *string         `json:"playerIdTurn"`
	WinnerIDs    []string        `json:"winnerIds"`
}

// Repo maps games to and from store records. Card data is validated on the
// way in, so a Game obtained from the repo always holds canonical cards.
type Repo struct {
	store store.Store
}

// NewRepo creates a game repository over s.
func NewRepo(s store.Store) *Repo {
	return &Repo{store: s}
}

// Create persists a new, empty game with a fresh id.
func (r *Repo) Create(ctx context.Context) (Game, error) {
	g := Game{ID: uuid.NewString(), WinnerIDs: []string{}}

	rec, err := encode(g)
	if err != nil {
		return Game{}, err
	}
	stored, err := r.store.Create(ctx, rec)
	if err != nil {
		return Game{}, err
	}

	g.Version = stored.Version
	return g, nil
}

// Update writes g, failing with store.ErrConflict if the game changed since
// g was read. The returned game carries the new version.
func (r *Repo) Update(ctx context.Context, g Game) (Game, error) {
	rec, err := encode(g)
	if err != nil {
		return Game{}, err
	}
	stored, err := r.store.Update(ctx, rec)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Game{}, fmt.Errorf("%w: %s", ErrNotFound, g.ID)
		}
		return Game{}, err
	}

	out := g.Clone()
	out.Version = stored.Version
	return out, nil
}

// FindByID loads a game, returning ErrNotFound if it does not exist.
func (r *Repo) FindByID(ctx context.Context, id string) (Game, error) {
	rec, err := r.store.Get(ctx, store.KindGame, id)
	if errors.Is(err, store.ErrNotFound) {
		return Game{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Game{}, err
	}
	return decode(rec)
}

// Remove deletes a game, returning ErrNotFound if it does not exist.
func (r *Repo) Remove(ctx context.Context, id string) error {
	err := r.store.Delete(ctx, store.KindGame, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func encode(g Game) (store.Record, error) {
	rec := record{WinnerIDs: g.WinnerIDs}
	if rec.WinnerIDs == nil {
		rec.WinnerIDs = []string{}
	}
	if g.Turn != "" {
		turn := g.Turn
		rec.PlayerIDTurn = &turn
	}

	var err error
	if rec.Deck, err = encodeCards(g.Deck.Cards()); err != nil {
		return store.Record{}, err
	}
	if rec.DealerCards, err = encodeCards(g.DealerCards); err != nil {
		return store.Record{}, err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return store.Record{}, fmt.Errorf("encode game %s: %w", g.ID, err)
	}
	return store.Record{Kind: store.KindGame, ID: g.ID, Version: g.Version, Data: data}, nil
}

func decode(rec store.Record) (Game, error) {
	if rec.Kind != store.KindGame {
		return Game{}, fmt.Errorf("decode game %s: record kind is %q", rec.ID, rec.Kind)
	}

	var raw record
	if err := json.Unmarshal(rec.Data, &raw); err != nil {
		return Game{}, fmt.Errorf("decode game %s: %w", rec.ID, err)
	}

	g := Game{ID: rec.ID, Version: rec.Version, WinnerIDs: raw.WinnerIDs}
	if g.WinnerIDs == nil {
		g.WinnerIDs = []string{}
	}
	if raw.PlayerIDTurn != nil {
		g.Turn = *raw.PlayerIDTurn
	}

	cards, err := decodeCards(raw.Deck)
	if err != nil {
		return Game{}, fmt.Errorf("decode game %s deck: %w", rec.ID, err)
	}
	if len(cards) > 0 {
		if g.Deck, err = deck.FromSource(cards); err != nil {
			return Game{}, fmt.Errorf("decode game %s deck: %w", rec.ID, err)
		}
	}

	if g.DealerCards, err = decodeCards(raw.DealerCards); err != nil {
		return Game{}, fmt.Errorf("decode game %s dealer cards: %w", rec.ID, err)
	}
	return g, nil
}

func encodeCards(cards []deck.Card) (json.RawMessage, error) {
	if cards == nil {
		cards = []deck.Card{}
	}
	return json.Marshal(cards)
}

// decodeCards treats an absent or empty list as an empty hand and validates
// anything else.
func decodeCards(raw json.RawMessage) ([]deck.Card, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		return []deck.Card{}, nil
	}
	return deck.ParseCards(trimmed)
}
