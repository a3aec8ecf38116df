// Package table sequences a Blackjack round: seating, dealing, player turns,
// dealer play and settlement. It drives the game engine and the player
// service, and reports each transition to a Publisher.
package table

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/player"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/store"
)

var (
	ErrNotYourTurn     = errors.New("it is not your turn")
	ErrRoundInProgress = errors.New("round in progress")
	ErrTableFull       = errors.New("table is full")
	ErrNotDealt        = errors.New("cards have not been dealt")
)

const (
	DefaultMaxSeats    = 7
	DefaultDecksAmount = 1
	DefaultMaxDecks    = 8
)

// Config holds the table settings.
type Config struct {
	Rules game.Rules
	// MaxSeats caps the roster of one game.
	MaxSeats int
	// DecksAmount is used when a deal does not name one.
	DecksAmount int
	// MaxDecks caps the decks amount a deal may ask for.
	MaxDecks int
}

func (c Config) withDefaults() Config {
	if c.Rules.DealerStandsAt <= 0 {
		c.Rules.DealerStandsAt = game.DefaultDealerStandsAt
	}
	if c.MaxSeats <= 0 {
		c.MaxSeats = DefaultMaxSeats
	}
	if c.DecksAmount <= 0 {
		c.DecksAmount = DefaultDecksAmount
	}
	if c.MaxDecks <= 0 {
		c.MaxDecks = DefaultMaxDecks
	}
	if c.MaxDecks < c.DecksAmount {
		c.MaxDecks = c.DecksAmount
	}
	return c
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher sets where transition events go.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publishers = append(o.publishers, p) }
}

// WithRoundMonitor sets the monitor told about settled rounds.
func WithRoundMonitor(m RoundMonitor) Option {
	return func(o *Orchestrator) { o.monitor = m }
}

// Orchestrator runs table actions. It is safe for concurrent use: each
// action builds its own engine and player service, and concurrent writes to
// the same record fail with store.ErrConflict rather than overwrite.
type Orchestrator struct {
	games   *game.Repo
	players *player.Repo
	rng     randutil.Source
	cfg     Config
	logger  *log.Logger

	publishers []Publisher
	publisher  Publisher
	monitor    RoundMonitor
}

// New creates an orchestrator over s. rng must be safe for concurrent use.
func New(s store.Store, rng randutil.Source, cfg Config, logger *log.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		games:   game.NewRepo(s),
		players: player.NewRepo(s),
		rng:     rng,
		cfg:     cfg.withDefaults(),
		logger:  logger.WithPrefix("table"),
		monitor: NullRoundMonitor{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.publisher = NewMultiPublisher(o.publishers...)
	return o
}

// AddPublisher adds p to the publishers. Call it before serving actions.
func (o *Orchestrator) AddPublisher(p Publisher) {
	o.publishers = append(o.publishers, p)
	o.publisher = NewMultiPublisher(o.publishers...)
}

// Config returns the table settings in use.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

func (o *Orchestrator) engine() *game.Engine {
	return game.NewEngine(o.games, o.rng, o.cfg.Rules, o.logger)
}

func (o *Orchestrator) playerService() *player.Service {
	return player.NewService(o.players, o.logger)
}

// SignUp registers a player.
func (o *Orchestrator) SignUp(ctx context.Context, email string) (player.Player, error) {
	return o.playerService().CreatePlayer(ctx, email)
}

// Me loads the player with email.
func (o *Orchestrator) Me(ctx context.Context, email string) (player.Player, error) {
	return o.playerService().LoadByEmail(ctx, email)
}

// StartGame creates a game and seats the requester at position 1 with the
// turn.
func (o *Orchestrator) StartGame(ctx context.Context, email string) (State, error) {
	ps := o.playerService()
	p, err := ps.LoadByEmail(ctx, email)
	if err != nil {
		return State{}, err
	}
	if p.Seated() {
		return State{}, fmt.Errorf("%w %s", player.ErrAlreadySeated, p.CurrentGameID)
	}

	eng := o.engine()
	g, err := eng.CreateNewGame(ctx)
	if err != nil {
		return State{}, err
	}
	if _, err := ps.StartGame(ctx, g.ID, 1); err != nil {
		o.discardGame(ctx, eng, g.ID)
		return State{}, err
	}
	if _, err := eng.AssignCurrentPlayerTurn(ctx, g.ID, p.ID); err != nil {
		if _, leaveErr := ps.LeaveGame(ctx); leaveErr != nil {
			o.logger.Error("Failed to unseat player", "game", g.ID, "player", email, "error", leaveErr)
		}
		o.discardGame(ctx, eng, g.ID)
		return State{}, err
	}

	o.logger.Info("Game started", "game", g.ID, "player", email)
	return o.emit(ctx, eng, EventGameStarted, email)
}

// JoinGame seats the requester after the last seat of gameID. Joining is
// only possible between rounds.
func (o *Orchestrator) JoinGame(ctx context.Context, email, gameID string) (State, error) {
	ps := o.playerService()
	p, err := ps.LoadByEmail(ctx, email)
	if err != nil {
		return State{}, err
	}
	if p.Seated() {
		return State{}, fmt.Errorf("%w %s", player.ErrAlreadySeated, p.CurrentGameID)
	}

	eng := o.engine()
	g, err := eng.LoadGame(ctx, gameID)
	if err != nil {
		return State{}, err
	}
	if !g.ReadyToDeal() {
		return State{}, fmt.Errorf("%w: game %s", ErrRoundInProgress, gameID)
	}

	members, err := ps.FindGameMembers(ctx, gameID)
	if err != nil {
		return State{}, err
	}
	if len(members) >= o.cfg.MaxSeats {
		return State{}, fmt.Errorf("%w: %d seats", ErrTableFull, o.cfg.MaxSeats)
	}
	position := 1
	if len(members) > 0 {
		position = members[len(members)-1].CurrentGamePosition + 1
	}

	if _, err := ps.StartGame(ctx, gameID, position); err != nil {
		return State{}, err
	}
	if !g.TurnActive() && len(g.DealerCards) == 0 {
		if _, err := eng.AssignCurrentPlayerTurn(ctx, gameID, p.ID); err != nil {
			return State{}, err
		}
	}

	o.logger.Info("Player joined", "game", gameID, "player", email, "position", position)
	return o.emit(ctx, eng, EventPlayerJoined, email)
}

// Deal starts a round: a fresh shuffled deck, two cards each, turn to the
// lowest seat. decksAmount 0 uses the configured default.
func (o *Orchestrator) Deal(ctx context.Context, email, gameID string, decksAmount int) (State, error) {
	if decksAmount < 0 || decksAmount > o.cfg.MaxDecks {
		return State{}, fmt.Errorf("%w: got %d, table allows 1 to %d", deck.ErrInvalidDecksAmount, decksAmount, o.cfg.MaxDecks)
	}

	ps := o.playerService()
	if _, err := o.participant(ctx, ps, email, gameID); err != nil {
		return State{}, err
	}

	eng := o.engine()
	g, err := eng.LoadGame(ctx, gameID)
	if err != nil {
		return State{}, err
	}
	if !g.ReadyToDeal() {
		return State{}, fmt.Errorf("%w: game %s", ErrRoundInProgress, gameID)
	}

	members, err := ps.FindGameMembers(ctx, gameID)
	if err != nil {
		return State{}, err
	}
	if decksAmount == 0 {
		decksAmount = o.cfg.DecksAmount
	}

	hands, err := eng.Deal(ctx, game.DealOptions{
		GameID:        gameID,
		PlayersAmount: len(members),
		PlayerIDTurn:  members[0].ID,
		DecksAmount:   decksAmount,
	})
	if err != nil {
		return State{}, err
	}

	for i, m := range members {
		ps.Adopt(m)
		if _, err := ps.ResetHand(ctx, m.Email); err != nil {
			return State{}, err
		}
		for _, card := range hands[i] {
			if _, err := ps.TakeCard(ctx, gameID, card); err != nil {
				return State{}, err
			}
		}
	}

	o.logger.Info("Dealt", "game", gameID, "players", len(members), "decks", decksAmount)
	return o.emit(ctx, eng, EventDealt, email)
}

// Hit draws a card for the requester. A hand over 21 loses on the spot, and
// any hand at 21 or more ends the requester's turn.
func (o *Orchestrator) Hit(ctx context.Context, email, gameID string) (State, error) {
	ps := o.playerService()
	eng := o.engine()
	p, err := o.onTurn(ctx, eng, ps, email, gameID)
	if err != nil {
		return State{}, err
	}

	card, err := eng.Hit(ctx, gameID, p.Cards)
	if err != nil {
		return State{}, err
	}
	p, err = ps.TakeCard(ctx, gameID, card)
	if err != nil {
		if _, backErr := eng.BackCard(ctx, gameID, card); backErr != nil {
			o.logger.Error("Failed to return card to deck", "game", gameID, "card", card.Title, "error", backErr)
		}
		return State{}, err
	}

	total := game.Total(p.Cards)
	o.logger.Debug("Player hit", "game", gameID, "player", email, "card", card.Title, "total", total)

	if game.IsBust(total) {
		if p, err = ps.Lose(ctx, email); err != nil {
			return State{}, err
		}
	}

	state, err := o.emit(ctx, eng, EventPlayerHit, email)
	if err != nil {
		return State{}, err
	}
	if total >= game.Blackjack {
		return o.advance(ctx, eng, ps, p, gameID)
	}
	return state, nil
}

// Stand ends the requester's turn.
func (o *Orchestrator) Stand(ctx context.Context, email, gameID string) (State, error) {
	ps := o.playerService()
	eng := o.engine()
	p, err := o.onTurn(ctx, eng, ps, email, gameID)
	if err != nil {
		return State{}, err
	}
	return o.advance(ctx, eng, ps, p, gameID)
}

// DealerTurn plays the dealer's hand and settles the round. A settled round
// is left alone.
func (o *Orchestrator) DealerTurn(ctx context.Context, gameID string) (State, error) {
	return o.dealerTurn(ctx, o.engine(), gameID)
}

// Leave unseats the requester. If it held the turn, the next seat takes it,
// or the dealer plays when none is left. The last seat to leave closes the
// game.
func (o *Orchestrator) Leave(ctx context.Context, email string) (player.Player, error) {
	ps := o.playerService()
	p, err := ps.LoadByEmail(ctx, email)
	if err != nil {
		return player.Player{}, err
	}
	if !p.Seated() {
		return p, nil
	}
	gameID := p.CurrentGameID

	members, err := ps.FindGameMembers(ctx, gameID)
	if err != nil {
		return player.Player{}, err
	}
	remaining := make([]player.Player, 0, len(members))
	for _, m := range members {
		if m.ID != p.ID {
			remaining = append(remaining, m)
		}
	}
	next, hasNext := nextSeat(remaining, p.CurrentGamePosition)

	left, err := ps.LeaveGame(ctx)
	if err != nil {
		return player.Player{}, err
	}
	o.logger.Info("Player left", "game", gameID, "player", email)

	eng := o.engine()
	if len(remaining) == 0 {
		if err := eng.RemoveGame(ctx, gameID); err != nil && !errors.Is(err, game.ErrNotFound) {
			return player.Player{}, err
		}
		o.logger.Info("Game closed", "game", gameID)
		o.publish(ctx, Event{Type: EventGameClosed, GameID: gameID, Player: email})
		return left, nil
	}

	g, err := eng.LoadGame(ctx, gameID)
	if errors.Is(err, game.ErrNotFound) {
		return left, nil
	}
	if err != nil {
		return player.Player{}, err
	}

	settle := false
	if g.Turn == p.ID {
		switch {
		case len(g.DealerCards) == 0:
			_, err = eng.AssignCurrentPlayerTurn(ctx, gameID, remaining[0].ID)
		case hasNext:
			_, err = eng.AssignCurrentPlayerTurn(ctx, gameID, next.ID)
		default:
			settle = true
		}
		if err != nil {
			return player.Player{}, err
		}
	}

	if _, err := o.emit(ctx, eng, EventPlayerLeft, email); err != nil {
		return player.Player{}, err
	}
	if settle {
		if _, err := o.dealerTurn(ctx, eng, gameID); err != nil {
			return player.Player{}, err
		}
	}
	return left, nil
}

// State returns the projection of gameID for a seated requester. It never
// publishes.
func (o *Orchestrator) State(ctx context.Context, email, gameID string) (State, error) {
	ps := o.playerService()
	if _, err := o.participant(ctx, ps, email, gameID); err != nil {
		return State{}, err
	}

	eng := o.engine()
	if _, err := eng.LoadGame(ctx, gameID); err != nil {
		return State{}, err
	}
	return o.snapshot(ctx, eng, ps)
}

// advance passes the turn from p to the next seat by position, or to the
// dealer when p was last.
func (o *Orchestrator) advance(ctx context.Context, eng *game.Engine, ps *player.Service, p player.Player, gameID string) (State, error) {
	members, err := ps.FindGameMembers(ctx, gameID)
	if err != nil {
		return State{}, err
	}

	next, ok := nextSeat(members, p.CurrentGamePosition)
	if !ok {
		return o.dealerTurn(ctx, eng, gameID)
	}
	if _, err := eng.AssignCurrentPlayerTurn(ctx, gameID, next.ID); err != nil {
		return State{}, err
	}
	return o.emit(ctx, eng, EventPlayerStood, p.Email)
}

func (o *Orchestrator) dealerTurn(ctx context.Context, eng *game.Engine, gameID string) (State, error) {
	ps := o.playerService()
	g, err := eng.LoadGame(ctx, gameID)
	if err != nil {
		return State{}, err
	}
	if g.Settled() {
		return o.snapshot(ctx, eng, ps)
	}

	dealerTotal, err := eng.DealerTurn(ctx, gameID)
	if err != nil {
		return State{}, err
	}
	g, _ = eng.Current()

	members, err := ps.FindGameMembers(ctx, gameID)
	if err != nil {
		return State{}, err
	}
	hands := make([]game.Hand, len(members))
	for i, m := range members {
		hands[i] = game.Hand{ID: m.ID, Email: m.Email, Cards: m.Cards}
	}
	st := game.PossibleWinners(hands)

	dealerWins := eng.Rules().DealerWins(st, dealerTotal, len(g.DealerCards))
	winners := make([]string, 0, len(st.Candidates))
	if dealerWins {
		winners = append(winners, game.DealerID)
	}
	for _, r := range st.Survivors {
		var err error
		if !dealerWins && st.IsCandidate(r.ID) {
			_, err = ps.Win(ctx, r.Email)
			winners = append(winners, r.ID)
		} else {
			_, err = ps.Lose(ctx, r.Email)
		}
		if err != nil {
			return State{}, err
		}
	}

	if _, err := eng.SetWinners(ctx, winners); err != nil {
		return State{}, err
	}

	state, err := o.emit(ctx, eng, EventRoundSettled, "")
	if err != nil {
		return State{}, err
	}

	o.logger.Info("Round settled", "game", gameID, "dealer", dealerTotal, "winners", winners)
	o.monitor.OnRoundSettled(RoundOutcome{
		GameID:      gameID,
		DealerCards: g.DealerCards,
		DealerTotal: dealerTotal,
		WinnerIDs:   winners,
		Players:     state.Players,
	})
	return state, nil
}

// participant loads the requester and checks it is seated in gameID.
func (o *Orchestrator) participant(ctx context.Context, ps *player.Service, email, gameID string) (player.Player, error) {
	p, err := ps.LoadByEmail(ctx, email)
	if err != nil {
		return player.Player{}, err
	}
	if !p.InGame(gameID) {
		return player.Player{}, fmt.Errorf("%w %s", player.ErrNotParticipant, gameID)
	}
	return p, nil
}

// onTurn loads the requester and the game and checks the requester may act.
func (o *Orchestrator) onTurn(ctx context.Context, eng *game.Engine, ps *player.Service, email, gameID string) (player.Player, error) {
	p, err := o.participant(ctx, ps, email, gameID)
	if err != nil {
		return player.Player{}, err
	}
	g, err := eng.LoadGame(ctx, gameID)
	if err != nil {
		return player.Player{}, err
	}
	if len(g.DealerCards) == 0 {
		return player.Player{}, fmt.Errorf("%w: game %s", ErrNotDealt, gameID)
	}
	if g.Turn != p.ID {
		return player.Player{}, ErrNotYourTurn
	}
	return p, nil
}

// snapshot projects the engine's current game with its members.
func (o *Orchestrator) snapshot(ctx context.Context, eng *game.Engine, ps *player.Service) (State, error) {
	g, ok := eng.Current()
	if !ok {
		return State{}, game.ErrNoGame
	}
	members, err := ps.FindGameMembers(ctx, g.ID)
	if err != nil {
		return State{}, err
	}
	return NewState(g, members), nil
}

// emit projects the current game and publishes it as an event of type t.
func (o *Orchestrator) emit(ctx context.Context, eng *game.Engine, t EventType, email string) (State, error) {
	state, err := o.snapshot(ctx, eng, o.playerService())
	if err != nil {
		return State{}, err
	}
	o.publish(ctx, Event{Type: t, GameID: state.ID, Player: email, State: &state})
	return state, nil
}

func (o *Orchestrator) publish(ctx context.Context, ev Event) {
	ev.Timestamp = time.Now()
	if err := o.publisher.Publish(ctx, ev); err != nil {
		o.logger.Warn("Failed to publish event", "type", ev.Type, "game", ev.GameID, "error", err)
	}
}

func (o *Orchestrator) discardGame(ctx context.Context, eng *game.Engine, gameID string) {
	if err := eng.RemoveGame(ctx, gameID); err != nil {
		o.logger.Error("Failed to discard game", "game", gameID, "error", err)
	}
}

// nextSeat returns the first seat after position. members must be sorted by
// ascending position.
func nextSeat(members []player.Player, position int) (player.Player, bool) {
	for _, m := range members {
		if m.CurrentGamePosition > position {
			return m, true
		}
	}
	return player.Player{}, false
}
