package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/randutil"
)

var (
	// ErrNotFound is returned for an unknown game id.
	ErrNotFound = errors.New("game not found")

	// ErrNoGame is returned by operations that need a current game when the
	// engine has none.
	ErrNoGame = errors.New("no current game")

	// ErrBust is returned when a hit is requested for a hand already over 21.
	ErrBust = errors.New("hand total already exceeds 21")

	// ErrDeckExhausted is returned when a draw finds the deck empty or a
	// deal needs more cards than the deck holds.
	ErrDeckExhausted = errors.New("deck has no cards left")

	// ErrInvalidDeal is returned for a deal with no players.
	ErrInvalidDeal = errors.New("deal needs at least one player")
)

// Engine owns the authoritative state of one game for the duration of an
// action. Engines are cheap; create one per request.
//
// Every mutation reads the current game, clones it, mutates the clone,
// persists it with a version check and then adopts it as current.
type Engine struct {
	repo   *Repo
	rng    randutil.Source
	rules  Rules
	logger *log.Logger

	current *Game
}

// NewEngine creates an engine with no current game.
func NewEngine(repo *Repo, rng randutil.Source, rules Rules, logger *log.Logger) *Engine {
	return &Engine{
		repo:   repo,
		rng:    rng,
		rules:  rules.withDefaults(),
		logger: logger,
	}
}

// Rules returns the rules the engine plays by.
func (e *Engine) Rules() Rules {
	return e.rules
}

// Current returns a copy of the current game, if any.
func (e *Engine) Current() (Game, bool) {
	if e.current == nil {
		return Game{}, false
	}
	return e.current.Clone(), true
}

// Public returns the player-facing view of the current game.
func (e *Engine) Public() (PublicGame, error) {
	if e.current == nil {
		return PublicGame{}, ErrNoGame
	}
	return e.current.Public(), nil
}

// CreateNewGame persists an empty game and makes it current.
func (e *Engine) CreateNewGame(ctx context.Context) (Game, error) {
	g, err := e.repo.Create(ctx)
	if err != nil {
		return Game{}, fmt.Errorf("create game: %w", err)
	}
	e.adopt(g)
	e.logger.Debug("Created game", "game", g.ID)
	return g.Clone(), nil
}

// LoadGame reads a game from the store and makes it current.
func (e *Engine) LoadGame(ctx context.Context, id string) (Game, error) {
	g, err := e.repo.FindByID(ctx, id)
	if err != nil {
		return Game{}, err
	}
	e.adopt(g)
	return g.Clone(), nil
}

// RemoveGame deletes a game. The current game is dropped if it matches.
func (e *Engine) RemoveGame(ctx context.Context, id string) error {
	if err := e.repo.Remove(ctx, id); err != nil {
		return err
	}
	if e.current != nil && e.current.ID == id {
		e.current = nil
	}
	e.logger.Debug("Removed game", "game", id)
	return nil
}

// DealOptions describes a fresh deal.
type DealOptions struct {
	GameID        string
	PlayersAmount int
	PlayerIDTurn  string
	DecksAmount   int
}

// Deal shuffles a fresh deck and deals two cards to the dealer and to each
// player, one at a time: dealer first, then players in order, twice over.
// The returned slice holds each player's two cards in deal order.
func (e *Engine) Deal(ctx context.Context, opts DealOptions) ([][]deck.Card, error) {
	if opts.PlayersAmount < 1 {
		return nil, ErrInvalidDeal
	}
	if opts.DecksAmount == 0 {
		opts.DecksAmount = 1
	}

	if _, err := e.LoadGame(ctx, opts.GameID); err != nil {
		return nil, err
	}

	fresh, err := deck.New(opts.DecksAmount)
	if err != nil {
		return nil, err
	}
	d, err := fresh.Shuffle(e.rng)
	if err != nil {
		return nil, err
	}
	if need := 2 * (opts.PlayersAmount + 1); d.Len() < need {
		return nil, fmt.Errorf("%w: deal needs %d cards, deck holds %d", ErrDeckExhausted, need, d.Len())
	}

	dealer := make([]deck.Card, 0, 2)
	hands := make([][]deck.Card, opts.PlayersAmount)
	for round := 0; round < 2; round++ {
		var c deck.Card
		c, d, _ = d.Draw()
		dealer = append(dealer, c)
		for i := range hands {
			c, d, _ = d.Draw()
			hands[i] = append(hands[i], c)
		}
	}

	next := e.current.Clone()
	next.Deck = d
	next.DealerCards = dealer
	next.Turn = opts.PlayerIDTurn
	next.WinnerIDs = []string{}
	if err := e.commit(ctx, next); err != nil {
		return nil, err
	}

	e.logger.Debug("Dealt", "game", next.ID, "players", opts.PlayersAmount, "decks", opts.DecksAmount, "remaining", d.Len())
	return hands, nil
}

// Hit draws the top card of the game's deck for a player holding
// playerCards. The card is not recorded against the player; that is the
// caller's job, and BackCard undoes the draw if it fails.
func (e *Engine) Hit(ctx context.Context, gameID string, playerCards []deck.Card) (deck.Card, error) {
	if err := e.ensure(ctx, gameID); err != nil {
		return deck.Card{}, err
	}
	if IsBust(Total(playerCards)) {
		return deck.Card{}, ErrBust
	}

	next := e.current.Clone()
	card, rest, ok := next.Deck.Draw()
	if !ok {
		return deck.Card{}, ErrDeckExhausted
	}
	next.Deck = rest
	if err := e.commit(ctx, next); err != nil {
		return deck.Card{}, err
	}

	e.logger.Debug("Hit", "game", gameID, "card", card.Title, "remaining", rest.Len())
	return card, nil
}

// BackCard returns a drawn card to the top of the deck.
func (e *Engine) BackCard(ctx context.Context, gameID string, card deck.Card) (Game, error) {
	if err := e.ensure(ctx, gameID); err != nil {
		return Game{}, err
	}

	next := e.current.Clone()
	next.Deck = next.Deck.PushFront(card)
	if err := e.commit(ctx, next); err != nil {
		return Game{}, err
	}

	e.logger.Debug("Returned card to deck", "game", gameID, "card", card.Title)
	return next.Clone(), nil
}

// AssignCurrentPlayerTurn gives the turn to playerID. An empty id hands the
// turn to the dealer.
func (e *Engine) AssignCurrentPlayerTurn(ctx context.Context, gameID, playerID string) (Game, error) {
	if err := e.ensure(ctx, gameID); err != nil {
		return Game{}, err
	}

	next := e.current.Clone()
	next.Turn = playerID
	if err := e.commit(ctx, next); err != nil {
		return Game{}, err
	}
	return next.Clone(), nil
}

// SetWinners records the round's winners on the current game.
func (e *Engine) SetWinners(ctx context.Context, winnerIDs []string) (Game, error) {
	if e.current == nil {
		return Game{}, ErrNoGame
	}

	next := e.current.Clone()
	next.WinnerIDs = append([]string{}, winnerIDs...)
	if err := e.commit(ctx, next); err != nil {
		return Game{}, err
	}
	return next.Clone(), nil
}

// DealerTurn ends player turns and plays out the dealer's hand, drawing
// while its total is below the rules' stand threshold. An empty shoe ends
// the draw early and the dealer stands on what it holds. It returns the
// dealer's final total.
func (e *Engine) DealerTurn(ctx context.Context, gameID string) (int, error) {
	if err := e.ensure(ctx, gameID); err != nil {
		return 0, err
	}

	next := e.current.Clone()
	next.Turn = ""
	total := Total(next.DealerCards)
	for total < e.rules.DealerStandsAt && !next.Deck.IsEmpty() {
		card, rest, _ := next.Deck.Draw()
		next.Deck = rest
		next.DealerCards = append(next.DealerCards, card)
		total = Total(next.DealerCards)
	}
	if total < e.rules.DealerStandsAt {
		e.logger.Warn("Shoe ran out during dealer play", "game", gameID, "total", total)
	}
	if err := e.commit(ctx, next); err != nil {
		return 0, err
	}

	e.logger.Debug("Dealer played", "game", gameID, "total", total, "cards", len(next.DealerCards))
	return total, nil
}

// ensure makes gameID the current game, loading it unless already current.
func (e *Engine) ensure(ctx context.Context, gameID string) error {
	if e.current != nil && e.current.ID == gameID {
		return nil
	}
	_, err := e.LoadGame(ctx, gameID)
	return err
}

func (e *Engine) commit(ctx context.Context, next Game) error {
	stored, err := e.repo.Update(ctx, next)
	if err != nil {
		return fmt.Errorf("persist game %s: %w", next.ID, err)
	}
	e.adopt(stored)
	return nil
}

func (e *Engine) adopt(g Game) {
	c := g.Clone()
	e.current = &c
}
