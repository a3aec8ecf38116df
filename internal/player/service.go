package player

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/charmbracelet/log"

	"github.com/lox/blackjack/internal/deck"
)

var (
	ErrNotFound       = errors.New("player not found")
	ErrNoPlayer       = errors.New("no current player")
	ErrInvalidEmail   = errors.New("email should be type of email")
	ErrEmailTaken     = errors.New("user already exists")
	ErrAlreadySeated  = errors.New("player already in game")
	ErrNotParticipant = errors.New("player is not participant of game")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail checks that email looks like an address.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}

// Service acts on one player at a time. Like the game engine it is created
// per action, and every change goes read, clone, mutate, persist, adopt.
type Service struct {
	repo   *Repo
	logger *log.Logger

	current *Player
}

// NewService creates a service with no current player.
func NewService(repo *Repo, logger *log.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Current returns a copy of the current player, if any.
func (s *Service) Current() (Player, bool) {
	if s.current == nil {
		return Player{}, false
	}
	return s.current.Clone(), true
}

// Adopt makes p the current player without reading the store.
func (s *Service) Adopt(p Player) Player {
	s.adopt(p)
	return p.Clone()
}

// CreatePlayer signs up a new player.
func (s *Service) CreatePlayer(ctx context.Context, email string) (Player, error) {
	if err := ValidateEmail(email); err != nil {
		return Player{}, err
	}
	p, err := s.repo.Create(ctx, email)
	if err != nil {
		return Player{}, err
	}
	s.adopt(p)
	s.logger.Info("Player signed up", "player", email)
	return p.Clone(), nil
}

// LoadByEmail reads a player and makes it current.
func (s *Service) LoadByEmail(ctx context.Context, email string) (Player, error) {
	if err := ValidateEmail(email); err != nil {
		return Player{}, err
	}
	p, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return Player{}, err
	}
	s.adopt(p)
	return p.Clone(), nil
}

// LoadByID reads a player and makes it current.
func (s *Service) LoadByID(ctx context.Context, id string) (Player, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Player{}, err
	}
	s.adopt(p)
	return p.Clone(), nil
}

// StartGame seats the current player in gameID at position with an empty
// hand.
func (s *Service) StartGame(ctx context.Context, gameID string, position int) (Player, error) {
	if s.current == nil {
		return Player{}, ErrNoPlayer
	}
	if s.current.Seated() {
		return Player{}, fmt.Errorf("%w %s", ErrAlreadySeated, s.current.CurrentGameID)
	}

	next := s.current.Clone()
	next.CurrentGameID = gameID
	next.CurrentGamePosition = position
	next.Cards = []deck.Card{}
	return s.commit(ctx, next)
}

// ResetHand empties the hand of the player with email, loading it first
// unless it is current.
func (s *Service) ResetHand(ctx context.Context, email string) (Player, error) {
	if err := s.ensure(ctx, email); err != nil {
		return Player{}, err
	}

	next := s.current.Clone()
	next.Cards = []deck.Card{}
	return s.commit(ctx, next)
}

// LeaveGame clears the current player's seat and hand.
func (s *Service) LeaveGame(ctx context.Context) (Player, error) {
	if s.current == nil {
		return Player{}, ErrNoPlayer
	}

	next := s.current.Clone()
	next.CurrentGameID = ""
	next.CurrentGamePosition = 0
	next.Cards = []deck.Card{}
	return s.commit(ctx, next)
}

// Win records a finished, won round for the player with email.
func (s *Service) Win(ctx context.Context, email string) (Player, error) {
	if err := s.ensure(ctx, email); err != nil {
		return Player{}, err
	}

	next := s.current.Clone()
	next.Score.TotalWins++
	next.Score.TotalGameFinished++
	return s.commit(ctx, next)
}

// Lose records a finished, lost round for the player with email.
func (s *Service) Lose(ctx context.Context, email string) (Player, error) {
	if err := s.ensure(ctx, email); err != nil {
		return Player{}, err
	}

	next := s.current.Clone()
	next.Score.TotalLosses++
	next.Score.TotalGameFinished++
	return s.commit(ctx, next)
}

// TakeCard appends card to the current player's hand. The player must be
// seated in gameID.
func (s *Service) TakeCard(ctx context.Context, gameID string, card deck.Card) (Player, error) {
	if s.current == nil {
		return Player{}, ErrNoPlayer
	}
	if !s.current.InGame(gameID) {
		return Player{}, fmt.Errorf("%w %s", ErrNotParticipant, gameID)
	}

	next := s.current.Clone()
	next.Cards = append(next.Cards, card)
	return s.commit(ctx, next)
}

// FindGameMembers returns the players seated in gameID by ascending
// position.
func (s *Service) FindGameMembers(ctx context.Context, gameID string) ([]Player, error) {
	return s.repo.FindAllByGame(ctx, gameID)
}

// ensure makes the player with email current. A current player with a
// different email is replaced.
func (s *Service) ensure(ctx context.Context, email string) error {
	if s.current != nil && s.current.Email == email {
		return nil
	}
	_, err := s.LoadByEmail(ctx, email)
	return err
}

func (s *Service) commit(ctx context.Context, next Player) (Player, error) {
	stored, err := s.repo.Update(ctx, next)
	if err != nil {
		return Player{}, fmt.Errorf("persist player %s: %w", next.Email, err)
	}
	s.adopt(stored)
	return stored.Clone(), nil
}

func (s *Service) adopt(p Player) {
	c := p.Clone()
	s.current = &c
}
