package table

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/player"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type monitorRecorder struct {
	outcomes []RoundOutcome
}

func (m *monitorRecorder) OnRoundSettled(o RoundOutcome) {
	m.outcomes = append(m.outcomes, o)
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	o       *Orchestrator
	events  *recorder
	monitor *monitorRecorder
}

func newFixture(t *testing.T, s store.Store, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		events:  &recorder{},
		monitor: &monitorRecorder{},
	}
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	f.o = New(s, randutil.NewLocked(1), cfg, logger, WithPublisher(f.events), WithRoundMonitor(f.monitor))
	return f
}

func (f *fixture) signUp(emails ...string) []player.Player {
	f.t.Helper()
	out := make([]player.Player, len(emails))
	for i, email := range emails {
		p, err := f.o.SignUp(f.ctx, email)
		require.NoError(f.t, err)
		out[i] = p
	}
	return out
}

// seat starts a game for the first email and joins the rest to it.
func (f *fixture) seat(emails ...string) string {
	f.t.Helper()
	state, err := f.o.StartGame(f.ctx, emails[0])
	require.NoError(f.t, err)
	for _, email := range emails[1:] {
		_, err := f.o.JoinGame(f.ctx, email, state.ID)
		require.NoError(f.t, err)
	}
	return state.ID
}

func (f *fixture) setDeck(gameID string, cards ...deck.Card) {
	f.t.Helper()
	g, err := f.o.games.FindByID(f.ctx, gameID)
	require.NoError(f.t, err)
	g.Deck = deck.Deck{}
	if len(cards) > 0 {
		g.Deck, err = deck.FromSource(cards)
		require.NoError(f.t, err)
	}
	_, err = f.o.games.Update(f.ctx, g)
	require.NoError(f.t, err)
}

func (f *fixture) setDealer(gameID string, cards ...deck.Card) {
	f.t.Helper()
	g, err := f.o.games.FindByID(f.ctx, gameID)
	require.NoError(f.t, err)
	g.DealerCards = cards
	_, err = f.o.games.Update(f.ctx, g)
	require.NoError(f.t, err)
}

func (f *fixture) setHand(email string, cards ...deck.Card) {
	f.t.Helper()
	p, err := f.o.players.FindByEmail(f.ctx, email)
	require.NoError(f.t, err)
	p.Cards = cards
	_, err = f.o.players.Update(f.ctx, p)
	require.NoError(f.t, err)
}

func (f *fixture) player(email string) player.Player {
	f.t.Helper()
	p, err := f.o.Me(f.ctx, email)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) game(gameID string) game.Game {
	f.t.Helper()
	g, err := f.o.games.FindByID(f.ctx, gameID)
	require.NoError(f.t, err)
	return g
}

func c(suit deck.Suit, rank deck.Rank) deck.Card {
	return deck.NewCard(suit, rank)
}

func TestRoundEndToEnd(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Config{})
	players := f.signUp("alice@example.com", "bob@example.com")
	alice, bob := players[0], players[1]

	gameID := f.seat(alice.Email, bob.Email)
	assert.Equal(t, []EventType{EventGameStarted, EventPlayerJoined}, f.events.types())

	state, err := f.o.Deal(f.ctx, bob.Email, gameID, 1)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, state.Turn(), "lowest seat acts first")
	assert.False(t, state.ReadyToDeal)
	assert.True(t, state.DealerTotal.Hidden)
	require.Len(t, state.DealerCards, 2)
	assert.Equal(t, deck.Masked, state.DealerCards[0])
	require.Len(t, state.Players, 2)
	for _, p := range state.Players {
		assert.Len(t, p.Cards, 2)
		assert.Equal(t, game.Total(p.Cards), p.Total)
	}
	assert.Equal(t, deck.StandardSize-6, f.game(gameID).Deck.Len())

	// Alice busts on a hit: she loses at once and the turn moves to Bob
	// without the dealer playing.
	f.setHand(alice.Email, c(deck.Hearts, deck.King), c(deck.Hearts, deck.Queen))
	f.setDeck(gameID, c(deck.Spades, deck.King), c(deck.Spades, deck.Two))
	f.events.reset()

	state, err = f.o.Hit(f.ctx, alice.Email, gameID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, state.Turn())
	assert.Empty(t, state.WinnerIDs)
	assert.Equal(t, []EventType{EventPlayerHit, EventPlayerStood}, f.events.types())
	assert.Equal(t, player.Score{TotalLosses: 1, TotalGameFinished: 1}, f.player(alice.Email).Score)

	// Bob stands on 19 against a dealer 17.
	f.setHand(bob.Email, c(deck.Clubs, deck.Ten), c(deck.Clubs, deck.Nine))
	f.setDealer(gameID, c(deck.Diamonds, deck.Ten), c(deck.Diamonds, deck.Seven))
	f.events.reset()

	state, err = f.o.Stand(f.ctx, bob.Email, gameID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, state.WinnerIDs)
	assert.Empty(t, state.Turn())
	assert.True(t, state.ReadyToDeal)
	assert.Equal(t, DealerTotal{Value: 17}, state.DealerTotal)
	assert.Equal(t, c(deck.Diamonds, deck.Ten), state.DealerCards[0])
	assert.Equal(t, []EventType{EventRoundSettled}, f.events.types())

	assert.Equal(t, player.Score{TotalWins: 1, TotalGameFinished: 1}, f.player(bob.Email).Score)
	assert.Equal(t, player.Score{TotalLosses: 1, TotalGameFinished: 1}, f.player(alice.Email).Score)

	require.Len(t, f.monitor.outcomes, 1)
	assert.False(t, f.monitor.outcomes[0].DealerWon())
	assert.Equal(t, 17, f.monitor.outcomes[0].DealerTotal)

	// A new round may be dealt once settled.
	state, err = f.o.Deal(f.ctx, alice.Email, gameID, 0)
	require.NoError(t, err)
	assert.Empty(t, state.WinnerIDs)
	assert.Equal(t, alice.ID, state.Turn())
}

func TestHitToTwentyOneStands(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Config{})
	f.signUp("a@x.io")
	gameID := f.seat("a@x.io")
	_, err := f.o.Deal(f.ctx, "a@x.io", gameID, 1)
	require.NoError(t, err)

	f.setHand("a@x.io", c(deck.Hearts, deck.King), c(deck.Hearts, deck.Five))
	f.setDealer(gameID, c(deck.Spades, deck.Ten), c(deck.Spades, deck.Eight))
	f.setDeck(gameID, c(deck.Clubs, deck.Six), c(deck.Clubs, deck.Two))

	state, err := f.o.Hit(f.ctx, "a@x.io", gameID)
	require.NoError(t, err)

	a := f.player("a@x.io")
	assert.Equal(t, 21, game.Total(a.Cards))
	assert.Equal(t, []string{a.ID}, state.WinnerIDs, "21 ends the turn and the dealer plays")
}

func TestDealerTieBreak(t *testing.T) {
	tests := []struct {
		name       string
		hand       []deck.Card
		dealer     []deck.Card
		dealerWins bool
	}{
		{
			name:       "dealer reaches the tie with fewer cards",
			hand:       []deck.Card{c(deck.Hearts, deck.Ten), c(deck.Hearts, deck.Five), c(deck.Hearts, deck.Three)},
			dealer:     []deck.Card{c(deck.Spades, deck.Ten), c(deck.Spades, deck.Eight)},
			dealerWins: true,
		},
		{
			name:       "tie with equal card counts goes to the player",
			hand:       []deck.Card{c(deck.Hearts, deck.Ten), c(deck.Hearts, deck.Eight)},
			dealer:     []deck.Card{c(deck.Spades, deck.Nine), c(deck.Clubs, deck.Nine)},
			dealerWins: false,
		},
		{
			name:       "higher dealer total",
			hand:       []deck.Card{c(deck.Hearts, deck.Ten), c(deck.Hearts, deck.Seven)},
			dealer:     []deck.Card{c(deck.Spades, deck.Ten), c(deck.Spades, deck.Nine)},
			dealerWins: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, store.NewMemory(), Config{})
			p := f.signUp("solo@x.io")[0]
			gameID := f.seat(p.Email)
			_, err := f.o.Deal(f.ctx, p.Email, gameID, 1)
			require.NoError(t, err)

			f.setHand(p.Email, tt.hand...)
			f.setDealer(gameID, tt.dealer...)

			state, err := f.o.Stand(f.ctx, p.Email, gameID)
			require.NoError(t, err)

			score := f.player(p.Email).Score
			if tt.dealerWins {
				assert.Equal(t, []string{game.DealerID}, state.WinnerIDs)
				assert.Equal(t, 1, score.TotalLosses)
			} else {
				assert.Equal(t, []string{p.ID}, state.WinnerIDs)
				assert.Equal(t, 1, score.TotalWins)
			}
			assert.Equal(t, 1, score.TotalGameFinished)
		})
	}
}

func TestNonCandidateSurvivorsLose(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Config{})
	f.signUp("a@x.io", "b@x.io")
	gameID := f.seat("a@x.io", "b@x.io")
	_, err := f.o.Deal(f.ctx, "a@x.io", gameID, 1)
	require.NoError(t, err)

	f.setHand("a@x.io", c(deck.Hearts, deck.Ten), c(deck.Hearts, deck.Nine))
	f.setHand("b@x.io", c(deck.Clubs, deck.Ten), c(deck.Clubs, deck.Seven))
	f.setDealer(gameID, c(deck.Spades, deck.Ten), c(deck.Spades, deck.Six))

	_, err = f.o.Stand(f.ctx, "a@x.io", gameID)
	require.NoError(t, err)
	state, err := f.o.Stand(f.ctx, "b@x.io", gameID)
	require.NoError(t, err)

	a, b := f.player("a@x.io"), f.player("b@x.io")
	assert.Equal(t, []string{a.ID}, state.WinnerIDs)
	assert.Equal(t, 1, a.Score.TotalWins)
	assert.Equal(t, 1, b.Score.TotalLosses)
	assert.Equal(t, 1, b.Score.TotalGameFinished)
}

func TestDealerTurnIsIdempotent(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Config{})
	p := f.signUp("a@x.io")[0]
	gameID := f.seat(p.Email)
	_, err := f.o.Deal(f.ctx, p.Email, gameID, 1)
	require.NoError(t, err)
	first, err := f.o.Stand(f.ctx, p.Email, gameID)
	require.NoError(t, err)
	before := f.player(p.Email).Score
	f.events.reset()

	again, err := f.o.DealerTurn(f.ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, first.WinnerIDs, again.WinnerIDs)
	assert.Equal(t, before, f.player(p.Email).Score)
	assert.Empty(t, f.events.types())
	assert.Len(t, f.monitor.outcomes, 1)
}

func TestActionGuards(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Config{MaxSeats: 2})
	f.signUp("a@x.io", "b@x.io", "c@x.io", "d@x.io")
	gameID := f.seat("a@x.io", "b@x.io")

	_, err := f.o.Hit(f.ctx, "a@x.io", gameID)
	assert.ErrorIs(t, err, ErrNotDealt)

	_, err = f.o.JoinGame(f.ctx, "c@x.io", gameID)
	assert.ErrorIs(t, err, ErrTableFull)

	_, err = f.o.StartGame(f.ctx, "a@x.io")
	assert.ErrorIs(t, err, player.ErrAlreadySeated)

	_, err = f.o.Deal(f.ctx, "c@x.io", gameID, 1)
	assert.ErrorIs(t, err, player.ErrNotParticipant)

	_, err = f.o.Deal(f.ctx, "a@x.io", gameID, 1)
	require.NoError(t, err)

	_, err = f.o.Deal(f.ctx, "a@x.io", gameID, 1)
	assert.ErrorIs(t, err, ErrRoundInProgress)

	_, err = f.o.Hit(f.ctx, "b@x.io", gameID)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = f.o.Stand(f.ctx, "b@x.io", gameID)
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = f.o.State(f.ctx, "c@x.io", gameID)
	assert.ErrorIs(t, err, player.ErrNotParticipant)

	_, err = f.o.StartGame(f.ctx, "nobody@x.io")
	assert.ErrorIs(t, err, player.ErrNotFound)

	otherGame := f.seat("c@x.io")
	_, err = f.o.Deal(f.ctx, "c@x.io", otherGame, 1)
	require.NoError(t, err)
	_, err = f.o.JoinGame(f.ctx, "d@x.io", otherGame)
	assert.ErrorIs(t, err, ErrRoundInProgress)
}

func TestHitOnBustHandIsRejected(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Config{})
	f.signUp("a@x.io", "b@x.io")
	gameID := f.seat("a@x.io", "b@x.io")
	_, err := f.o.Deal(f.ctx, "a@x.io", gameID, 1)
	require.NoError(t, err)

	f.setHand("a@x.io", c(deck.Hearts, deck.King), c(deck.Hearts, deck.Queen), c(deck.Hearts, deck.Five))
	before := f.game(gameID).Deck.Len()

	_, err = f.o.Hit(f.ctx, "a@x.io", gameID)
	assert.ErrorIs(t, err, game.ErrBust)
	assert.Equal(t, before, f.game(gameID).Deck.Len())
}

// failingStore rejects updates of one kind once armed.
type failingStore struct {
	store.Store
	mu   sync.Mutex
	kind store.Kind
}

func (s *failingStore) arm(kind store.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kind = kind
}

var errInjected = errors.New("injected store failure")

func (s *failingStore) Update(ctx context.Context, rec store.Record) (store.Record, error) {
	s.mu.Lock()
	kind := s.kind
	s.mu.Unlock()
	if kind != "" && rec.Kind == kind {
		return store.Record{}, errInjected
	}
	return s.Store.Update(ctx, rec)
}

func TestHitReturnsCardWhenAttachFails(t *testing.T) {
	s := &failingStore{Store: store.NewMemory()}
	f := newFixture(t, s, Config{})
	f.signUp("a@x.io")
	gameID := f.seat("a@x.io")
	_, err := f.o.Deal(f.ctx, "a@x.io", gameID, 1)
	require.NoError(t, err)

	before := f.game(gameID).Deck.Cards()
	handBefore := f.player("a@x.io").Cards
	s.arm(store.KindPlayer)

	_, err = f.o.Hit(f.ctx, "a@x.io", gameID)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, before, f.game(gameID).Deck.Cards())
	assert.Equal(t, handBefore, f.player("a@x.io").Cards)
}

func TestStartGameUnseatsWhenTurnCannotBeAssigned(t *testing.T) {
	s := &failingStore{Store: store.NewMemory()}
	f := newFixture(t, s, Config{})
	f.signUp("a@x.io")
	s.arm(store.KindGame)

	_, err := f.o.StartGame(f.ctx, "a@x.io")
	assert.ErrorIs(t, err, errInjected)

	a := f.player("a@x.io")
	assert.False(t, a.Seated())
	games, err := s.Scan(f.ctx, store.KindGame, nil)
	require.NoError(t, err)
	assert.Empty(t, games, "the half-created game is discarded")
	assert.Empty(t, f.events.types())
}

func TestDealRejectsDecksAboveTableLimit(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Config{MaxDecks: 2})
	f.signUp("a@x.io")
	gameID := f.seat("a@x.io")

	for _, n := range []int{3, 1 << 30, -1} {
		_, err := f.o.Deal(f.ctx, "a@x.io", gameID, n)
		assert.ErrorIs(t, err, deck.ErrInvalidDecksAmount, "decks %d", n)
	}
	assert.True(t, f.game(gameID).ReadyToDeal())

	state, err := f.o.Deal(f.ctx, "a@x.io", gameID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2*deck.StandardSize-4, f.game(state.ID).Deck.Len())
}

func TestDealerSettlesWhenShoeRunsOut(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Config{})
	f.signUp("a@x.io", "b@x.io")
	gameID := f.seat("a@x.io", "b@x.io")
	_, err := f.o.Deal(f.ctx, "a@x.io", gameID, 1)
	require.NoError(t, err)

	f.setHand("a@x.io", c(deck.Hearts, deck.Ten), c(deck.Hearts, deck.Two))
	f.setHand("b@x.io", c(deck.Clubs, deck.Ten), c(deck.Clubs, deck.Eight))
	f.setDealer(gameID, c(deck.Spades, deck.Ten), c(deck.Spades, deck.Three))
	f.setDeck(gameID, c(deck.Diamonds, deck.Two))

	_, err = f.o.Stand(f.ctx, "a@x.io", gameID)
	require.NoError(t, err)

	// The dealer draws the last card at 13 and stops at 15 with the shoe
	// empty instead of failing the round.
	state, err := f.o.Stand(f.ctx, "b@x.io", gameID)
	require.NoError(t, err)

	b := f.player("b@x.io")
	assert.Equal(t, []string{b.ID}, state.WinnerIDs)
	assert.Equal(t, DealerTotal{Value: 15}, state.DealerTotal)
	assert.Empty(t, state.Turn())
	assert.True(t, state.ReadyToDeal)
	assert.Zero(t, f.game(gameID).Deck.Len())
	require.Len(t, f.monitor.outcomes, 1)

	// The next round deals from a fresh shoe.
	_, err = f.o.Deal(f.ctx, "a@x.io", gameID, 0)
	require.NoError(t, err)
}

func TestHitOnEmptyShoeThenStandSettles(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Config{})
	f.signUp("a@x.io")
	gameID := f.seat("a@x.io")
	_, err := f.o.Deal(f.ctx, "a@x.io", gameID, 1)
	require.NoError(t, err)

	f.setHand("a@x.io", c(deck.Hearts, deck.Ten), c(deck.Hearts, deck.Nine))
	f.setDealer(gameID, c(deck.Spades, deck.Ten), c(deck.Spades, deck.Four))
	f.setDeck(gameID)

	_, err = f.o.Hit(f.ctx, "a@x.io", gameID)
	assert.ErrorIs(t, err, game.ErrDeckExhausted)

	state, err := f.o.Stand(f.ctx, "a@x.io", gameID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.player("a@x.io").ID}, state.WinnerIDs)
	assert.Equal(t, DealerTotal{Value: 14}, state.DealerTotal)
}

func TestLeave(t *testing.T) {
	t.Run("last seat closes the game", func(t *testing.T) {
		f := newFixture(t, store.NewMemory(), Config{})
		f.signUp("a@x.io")
		gameID := f.seat("a@x.io")
		f.events.reset()

		p, err := f.o.Leave(f.ctx, "a@x.io")
		require.NoError(t, err)
		assert.False(t, p.Seated())
		assert.Empty(t, p.Cards)

		_, err = f.o.games.FindByID(f.ctx, gameID)
		assert.ErrorIs(t, err, game.ErrNotFound)
		assert.Equal(t, []EventType{EventGameClosed}, f.events.types())
	})

	t.Run("leaving unseated is a no-op", func(t *testing.T) {
		f := newFixture(t, store.NewMemory(), Config{})
		f.signUp("a@x.io")

		p, err := f.o.Leave(f.ctx, "a@x.io")
		require.NoError(t, err)
		assert.False(t, p.Seated())
		assert.Empty(t, f.events.types())
	})

	t.Run("turn passes to the next seat", func(t *testing.T) {
		f := newFixture(t, store.NewMemory(), Config{})
		players := f.signUp("a@x.io", "b@x.io", "c@x.io")
		gameID := f.seat("a@x.io", "b@x.io", "c@x.io")
		_, err := f.o.Deal(f.ctx, "a@x.io", gameID, 1)
		require.NoError(t, err)

		_, err = f.o.Leave(f.ctx, "a@x.io")
		require.NoError(t, err)
		assert.Equal(t, players[1].ID, f.game(gameID).Turn)

		_, err = f.o.Leave(f.ctx, "c@x.io")
		require.NoError(t, err)
		assert.Equal(t, players[1].ID, f.game(gameID).Turn, "leaving off turn keeps the turn")

		state, err := f.o.State(f.ctx, "b@x.io", gameID)
		require.NoError(t, err)
		assert.Len(t, state.Players, 1)
	})

	t.Run("last seat on turn hands over to the dealer", func(t *testing.T) {
		f := newFixture(t, store.NewMemory(), Config{})
		players := f.signUp("a@x.io", "b@x.io")
		gameID := f.seat("a@x.io", "b@x.io")
		_, err := f.o.Deal(f.ctx, "a@x.io", gameID, 1)
		require.NoError(t, err)

		f.setHand("a@x.io", c(deck.Hearts, deck.Ten), c(deck.Hearts, deck.Nine))
		f.setDealer(gameID, c(deck.Spades, deck.Ten), c(deck.Spades, deck.Seven))
		_, err = f.o.Stand(f.ctx, "a@x.io", gameID)
		require.NoError(t, err)
		f.events.reset()

		_, err = f.o.Leave(f.ctx, "b@x.io")
		require.NoError(t, err)

		g := f.game(gameID)
		assert.Empty(t, g.Turn)
		assert.Equal(t, []string{players[0].ID}, g.WinnerIDs)
		assert.Equal(t, []EventType{EventPlayerLeft, EventRoundSettled}, f.events.types())
	})

	t.Run("before the deal the first remaining seat gets the turn", func(t *testing.T) {
		f := newFixture(t, store.NewMemory(), Config{})
		players := f.signUp("a@x.io", "b@x.io", "c@x.io")
		gameID := f.seat("a@x.io", "b@x.io", "c@x.io")

		_, err := f.o.Leave(f.ctx, "a@x.io")
		require.NoError(t, err)
		assert.Equal(t, players[1].ID, f.game(gameID).Turn)
		assert.Empty(t, f.game(gameID).DealerCards)
	})
}

func TestStateDoesNotPublish(t *testing.T) {
	f := newFixture(t, store.NewMemory(), Config{})
	f.signUp("a@x.io")
	gameID := f.seat("a@x.io")
	_, err := f.o.Deal(f.ctx, "a@x.io", gameID, 1)
	require.NoError(t, err)
	f.events.reset()

	state, err := f.o.State(f.ctx, "a@x.io", gameID)
	require.NoError(t, err)
	assert.Empty(t, f.events.types())

	data, err := json.Marshal(state)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "-", raw["dealerTotal"])
	assert.Equal(t, false, raw["readyToDeal"])
	hole := raw["dealerCards"].([]any)[0].(map[string]any)
	assert.Equal(t, "*", hole["title"])
	assert.Equal(t, "*", hole["value"])

	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.DealerTotal.Hidden)
}
