package table

import (
	"context"
	"errors"
	"time"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
)

// EventType names a table transition.
type EventType string

const (
	EventGameStarted  EventType = "game_started"
	EventPlayerJoined EventType = "player_joined"
	EventDealt        EventType = "dealt"
	EventPlayerHit    EventType = "player_hit"
	EventPlayerStood  EventType = "player_stood"
	EventRoundSettled EventType = "round_settled"
	EventPlayerLeft   EventType = "player_left"
	EventGameClosed   EventType = "game_closed"
)

func (t EventType) String() string {
	return string(t)
}

// Event is emitted after every successful transition. State is nil once the
// game is closed.
type Event struct {
	Type      EventType `json:"type"`
	GameID    string    `json:"gameId"`
	Player    string    `json:"player,omitempty"`
	State     *State    `json:"state,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers events to whoever follows a game. Delivery is best
// effort: a publish error never undoes the transition.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NullPublisher discards events.
type NullPublisher struct{}

func (NullPublisher) Publish(context.Context, Event) error { return nil }

// MultiPublisher fans an event out to several publishers.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher drops nil entries and returns a NullPublisher when none
// are left.
func NewMultiPublisher(publishers ...Publisher) Publisher {
	filtered := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			filtered = append(filtered, p)
		}
	}

	switch len(filtered) {
	case 0:
		return NullPublisher{}
	case 1:
		return filtered[0]
	default:
		return MultiPublisher{publishers: filtered}
	}
}

func (m MultiPublisher) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// RoundOutcome describes a settled round.
type RoundOutcome struct {
	GameID      string
	DealerCards []deck.Card
	DealerTotal int
	WinnerIDs   []string
	Players     []PlayerView
}

// DealerWon reports whether the dealer took the round.
func (o RoundOutcome) DealerWon() bool {
	return len(o.WinnerIDs) == 1 && o.WinnerIDs[0] == game.DealerID
}

// RoundMonitor is told about every settled round.
type RoundMonitor interface {
	OnRoundSettled(outcome RoundOutcome)
}

// NullRoundMonitor is a no-op implementation.
type NullRoundMonitor struct{}

func (NullRoundMonitor) OnRoundSettled(RoundOutcome) {}
