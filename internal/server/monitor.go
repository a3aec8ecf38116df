package server

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/table"
)

// MultiRoundMonitor fan-outs settled rounds to multiple monitors.
type MultiRoundMonitor struct {
	monitors []table.RoundMonitor
}

// NewMultiRoundMonitor builds a composite monitor, automatically pruning nil
// entries and returning a NullRoundMonitor when no monitors are provided.
func NewMultiRoundMonitor(monitors ...table.RoundMonitor) table.RoundMonitor {
	filtered := make([]table.RoundMonitor, 0, len(monitors))
	for _, monitor := range monitors {
		if monitor != nil {
			filtered = append(filtered, monitor)
		}
	}

	switch len(filtered) {
	case 0:
		return table.NullRoundMonitor{}
	case 1:
		return filtered[0]
	default:
		return MultiRoundMonitor{monitors: filtered}
	}
}

func (m MultiRoundMonitor) OnRoundSettled(outcome table.RoundOutcome) {
	for _, monitor := range m.monitors {
		monitor.OnRoundSettled(outcome)
	}
}

// RoundPrinter writes a short styled summary of every settled round.
type RoundPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	header lipgloss.Style
	win    lipgloss.Style
	lose   lipgloss.Style
	dim    lipgloss.Style
}

// NewRoundPrinter renders to w, detecting colour support from it unless
// plain is set.
func NewRoundPrinter(w io.Writer, plain bool) *RoundPrinter {
	r := lipgloss.NewRenderer(w)
	if plain {
		r.SetColorProfile(termenv.Ascii)
	}

	return &RoundPrinter{
		out:    w,
		header: r.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true),
		win:    r.NewStyle().Foreground(lipgloss.Color("#00FF7F")).Bold(true),
		lose:   r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		dim:    r.NewStyle().Foreground(lipgloss.Color("#808080")),
	}
}

func (p *RoundPrinter) OnRoundSettled(outcome table.RoundOutcome) {
	var b strings.Builder

	b.WriteString(p.header.Render("Round settled"))
	b.WriteString(p.dim.Render(" game " + outcome.GameID))
	b.WriteString("\n")

	dealer := fmt.Sprintf("  %-24s %2d  %s", "dealer", outcome.DealerTotal, formatCards(outcome.DealerCards))
	if outcome.DealerWon() {
		b.WriteString(p.win.Render(dealer + "  WIN"))
	} else {
		b.WriteString(dealer)
	}
	b.WriteString("\n")

	winners := make(map[string]bool, len(outcome.WinnerIDs))
	for _, id := range outcome.WinnerIDs {
		winners[id] = true
	}
	for _, pl := range outcome.Players {
		line := fmt.Sprintf("  %-24s %2d  %s", pl.Email, pl.Total, formatCards(pl.Cards))
		switch {
		case winners[pl.ID]:
			b.WriteString(p.win.Render(line + "  WIN"))
		case game.IsBust(pl.Total):
			b.WriteString(p.lose.Render(line + "  BUST"))
		default:
			b.WriteString(p.lose.Render(line + "  LOSE"))
		}
		b.WriteString("\n")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.out, b.String())
}

func formatCards(cards []deck.Card) string {
	titles := make([]string, len(cards))
	for i, c := range cards {
		titles[i] = c.String()
	}
	return strings.Join(titles, ", ")
}

// RoundTally counts settled rounds for the shutdown summary.
type RoundTally struct {
	mu         sync.Mutex
	rounds     int
	dealerWins int
	playerWins int
}

// NewRoundTally creates an empty tally.
func NewRoundTally() *RoundTally {
	return &RoundTally{}
}

func (t *RoundTally) OnRoundSettled(outcome table.RoundOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rounds++
	if outcome.DealerWon() {
		t.dealerWins++
		return
	}
	t.playerWins += len(outcome.WinnerIDs)
}

// Snapshot returns rounds settled, rounds the dealer took and individual
// player wins.
func (t *RoundTally) Snapshot() (rounds, dealerWins, playerWins int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rounds, t.dealerWins, t.playerWins
}
