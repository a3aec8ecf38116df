package table

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/blackjack/internal/player"
)

// Leaver removes a player from its game.
type Leaver interface {
	Leave(ctx context.Context, email string) (player.Player, error)
}

// Evictor unseats players that stay idle for too long. It follows the table
// through its events. While a round is in play only the player holding the
// turn has a timer; between rounds every seat has one. Timers restart on the
// player's own actions and whenever the turn or the phase of the round
// changes. A timer that runs out makes the player leave.
type Evictor struct {
	leaver  Leaver
	clock   quartz.Clock
	timeout time.Duration
	logger  *log.Logger

	mu     sync.Mutex
	timers map[string]*idleTimer
	turns  map[string]turnMark
}

// turnMark is what the evictor last saw of a game's turn. Between rounds
// the turn is not tracked.
type turnMark struct {
	turn   string
	inPlay bool
}

type idleTimer struct {
	gameID string
	timer  *quartz.Timer
}

// NewEvictor creates an evictor. A zero timeout disables eviction.
func NewEvictor(leaver Leaver, clock quartz.Clock, timeout time.Duration, logger *log.Logger) *Evictor {
	return &Evictor{
		leaver:  leaver,
		clock:   clock,
		timeout: timeout,
		logger:  logger.WithPrefix("evictor"),
		timers:  make(map[string]*idleTimer),
		turns:   make(map[string]turnMark),
	}
}

// Publish implements Publisher.
func (e *Evictor) Publish(_ context.Context, ev Event) error {
	if e.timeout <= 0 {
		return nil
	}

	switch ev.Type {
	case EventGameClosed:
		e.forgetGame(ev.GameID)
		if ev.Player != "" {
			e.Forget(ev.Player)
		}
		return nil
	case EventPlayerLeft:
		e.Forget(ev.Player)
	}

	if ev.State == nil {
		if ev.Player != "" && ev.Type != EventPlayerLeft {
			e.Touch(ev.GameID, ev.Player)
		}
		return nil
	}
	e.follow(ev)
	return nil
}

// follow applies a game snapshot: the seats that may act keep a timer, the
// rest are paused.
func (e *Evictor) follow(ev Event) {
	st := ev.State
	mark := turnMark{inPlay: !st.ReadyToDeal}
	if mark.inPlay {
		mark.turn = st.Turn()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	changed := e.turns[ev.GameID] != mark
	e.turns[ev.GameID] = mark

	for _, p := range st.Players {
		if mark.inPlay && p.ID != mark.turn {
			e.stopLocked(p.Email)
			continue
		}
		_, running := e.timers[p.Email]
		acted := p.Email == ev.Player && ev.Type != EventPlayerLeft
		if running && !changed && !acted {
			continue
		}
		e.stopLocked(p.Email)
		e.startLocked(ev.GameID, p.Email)
	}
}

// Touch restarts the idle timer of email.
func (e *Evictor) Touch(gameID, email string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked(email)
	e.startLocked(gameID, email)
}

// Forget stops tracking email.
func (e *Evictor) Forget(email string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(email)
}

// Tracked returns the number of players with a running timer.
func (e *Evictor) Tracked() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

// Stop cancels every timer.
func (e *Evictor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for email := range e.timers {
		e.stopLocked(email)
	}
	clear(e.turns)
}

func (e *Evictor) forgetGame(gameID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for email, t := range e.timers {
		if t.gameID == gameID {
			e.stopLocked(email)
		}
	}
	delete(e.turns, gameID)
}

func (e *Evictor) stopLocked(email string) {
	if t, ok := e.timers[email]; ok {
		t.timer.Stop()
		delete(e.timers, email)
	}
}

func (e *Evictor) startLocked(gameID, email string) {
	it := &idleTimer{gameID: gameID}
	it.timer = e.clock.AfterFunc(e.timeout, func() {
		e.expire(email, it)
	})
	e.timers[email] = it
}

func (e *Evictor) expire(email string, it *idleTimer) {
	e.mu.Lock()
	if e.timers[email] != it {
		// Replaced or stopped after the timer fired.
		e.mu.Unlock()
		return
	}
	delete(e.timers, email)
	e.mu.Unlock()

	e.logger.Info("Evicting idle player", "player", email, "game", it.gameID, "timeout", e.timeout)
	if _, err := e.leaver.Leave(context.Background(), email); err != nil {
		e.logger.Warn("Failed to evict idle player", "player", email, "error", err)
	}
}
