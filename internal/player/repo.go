package player

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/store"
)

type record struct {
	Email               string          `json:"email"`
	Score               Score           `json:"score"`
	CurrentGameID       *string         `json:"currentGameId"`
	CurrentGamePosition int             `json:"currentGamePosition"`
	Cards               json.RawMessage `json:"cards"`
}

type emailRecord struct {
	PlayerID string `json:"playerId"`
}

// Repo maps players to and from store records. Emails are claimed through a
// separate index record so two sign-ups cannot share one.
type Repo struct {
	store store.Store
}

// NewRepo creates a player repository over s.
func NewRepo(s store.Store) *Repo {
	return &Repo{store: s}
}

// Create registers a new player. It fails with ErrEmailTaken when the email
// already belongs to someone.
func (r *Repo) Create(ctx context.Context, email string) (Player, error) {
	p := Player{ID: uuid.NewString(), Email: email, Cards: []deck.Card{}}

	idx, err := json.Marshal(emailRecord{PlayerID: p.ID})
	if err != nil {
		return Player{}, err
	}
	_, err = r.store.Create(ctx, store.Record{Kind: store.KindEmail, ID: email, Data: idx})
	if errors.Is(err, store.ErrExists) {
		return Player{}, fmt.Errorf("%w: %s", ErrEmailTaken, email)
	}
	if err != nil {
		return Player{}, err
	}

	rec, err := encode(p)
	if err != nil {
		return Player{}, err
	}
	stored, err := r.store.Create(ctx, rec)
	if err != nil {
		// Release the email so the sign-up can be retried.
		_ = r.store.Delete(ctx, store.KindEmail, email)
		return Player{}, err
	}

	p.Version = stored.Version
	return p, nil
}

// Update writes p with a version check.
func (r *Repo) Update(ctx context.Context, p Player) (Player, error) {
	rec, err := encode(p)
	if err != nil {
		return Player{}, err
	}
	stored, err := r.store.Update(ctx, rec)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Player{}, fmt.Errorf("%w: %s", ErrNotFound, p.ID)
		}
		return Player{}, err
	}

	out := p.Clone()
	out.Version = stored.Version
	return out, nil
}

// FindByID loads a player by id.
func (r *Repo) FindByID(ctx context.Context, id string) (Player, error) {
	rec, err := r.store.Get(ctx, store.KindPlayer, id)
	if errors.Is(err, store.ErrNotFound) {
		return Player{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Player{}, err
	}
	return decode(rec)
}

// FindByEmail loads a player by email.
func (r *Repo) FindByEmail(ctx context.Context, email string) (Player, error) {
	rec, err := r.store.Get(ctx, store.KindEmail, email)
	if errors.Is(err, store.ErrNotFound) {
		return Player{}, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	if err != nil {
		return Player{}, err
	}

	var idx emailRecord
	if err := json.Unmarshal(rec.Data, &idx); err != nil {
		return Player{}, fmt.Errorf("decode email index %s: %w", email, err)
	}
	return r.FindByID(ctx, idx.PlayerID)
}

// FindAllByGame returns the players seated in gameID ordered by ascending
// position.
func (r *Repo) FindAllByGame(ctx context.Context, gameID string) ([]Player, error) {
	if gameID == "" {
		return []Player{}, nil
	}

	recs, err := r.store.Scan(ctx, store.KindPlayer, func(rec store.Record) bool {
		var seat struct {
			CurrentGameID *string `json:"currentGameId"`
		}
		return json.Unmarshal(rec.Data, &seat) == nil &&
			seat.CurrentGameID != nil && *seat.CurrentGameID == gameID
	})
	if err != nil {
		return nil, err
	}

	players := make([]Player, 0, len(recs))
	for _, rec := range recs {
		p, err := decode(rec)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].CurrentGamePosition < players[j].CurrentGamePosition
	})
	return players, nil
}

func encode(p Player) (store.Record, error) {
	rec := record{
		Email:               p.Email,
		Score:               p.Score,
		CurrentGamePosition: p.CurrentGamePosition,
	}
	if p.CurrentGameID != "" {
		id := p.CurrentGameID
		rec.CurrentGameID = &id
	}

	cards := p.Cards
	if cards == nil {
		cards = []deck.Card{}
	}
	var err error
	if rec.Cards, err = json.Marshal(cards); err != nil {
		return store.Record{}, fmt.Errorf("encode player %s cards: %w", p.ID, err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return store.Record{}, fmt.Errorf("encode player %s: %w", p.ID, err)
	}
	return store.Record{Kind: store.KindPlayer, ID: p.ID, Version: p.Version, Data: data}, nil
}

func decode(rec store.Record) (Player, error) {
	if rec.Kind != store.KindPlayer {
		return Player{}, fmt.Errorf("decode player %s: record kind is %q", rec.ID, rec.Kind)
	}

	var raw record
	if err := json.Unmarshal(rec.Data, &raw); err != nil {
		return Player{}, fmt.Errorf("decode player %s: %w", rec.ID, err)
	}

	p := Player{
		ID:                  rec.ID,
		Email:               raw.Email,
		Score:               raw.Score,
		CurrentGamePosition: raw.CurrentGamePosition,
		Cards:               []deck.Card{},
		Version:             rec.Version,
	}
	if raw.CurrentGameID != nil {
		p.CurrentGameID = *raw.CurrentGameID
	}

	trimmed := bytes.TrimSpace(raw.Cards)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte("[]")) {
		cards, err := deck.ParseCards(trimmed)
		if err != nil {
			return Player{}, fmt.Errorf("decode player %s cards: %w", rec.ID, err)
		}
		p.Cards = cards
	}
	return p, nil
}
