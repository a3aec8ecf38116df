package server

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/table"
)

type countingMonitor struct{ n int }

func (c *countingMonitor) OnRoundSettled(table.RoundOutcome) { c.n++ }

func TestNewMultiRoundMonitor(t *testing.T) {
	assert.IsType(t, table.NullRoundMonitor{}, NewMultiRoundMonitor())
	assert.IsType(t, table.NullRoundMonitor{}, NewMultiRoundMonitor(nil, nil))

	single := &countingMonitor{}
	assert.Same(t, single, NewMultiRoundMonitor(nil, single))

	a, b := &countingMonitor{}, &countingMonitor{}
	NewMultiRoundMonitor(a, nil, b).OnRoundSettled(table.RoundOutcome{})
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}

func TestRoundPrinter(t *testing.T) {
	var buf bytes.Buffer
	printer := NewRoundPrinter(&buf, true)

	printer.OnRoundSettled(table.RoundOutcome{
		GameID:      "g1",
		DealerCards: []deck.Card{deck.NewCard(deck.Hearts, deck.Ten), deck.NewCard(deck.Clubs, deck.Seven)},
		DealerTotal: 17,
		WinnerIDs:   []string{"p1"},
		Players: []table.PlayerView{
			{ID: "p1", Email: "alice@example.com", Total: 20, Cards: []deck.Card{deck.NewCard(deck.Spades, deck.King), deck.NewCard(deck.Hearts, deck.Queen)}},
			{ID: "p2", Email: "bob@example.com", Total: 24, Cards: []deck.Card{deck.NewCard(deck.Clubs, deck.King), deck.NewCard(deck.Hearts, deck.Four), deck.NewCard(deck.Spades, deck.Ten)}},
			{ID: "p3", Email: "carol@example.com", Total: 15},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Round settled game g1")
	assert.Contains(t, out, "10 of Hearts, 7 of Clubs")
	assert.NotContains(t, out, "\x1b[", "plain output has no escape codes")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if assert.Len(t, lines, 5) {
		assert.NotContains(t, lines[1], "WIN")
		assert.Contains(t, lines[2], "alice@example.com")
		assert.True(t, strings.HasSuffix(lines[2], "WIN"))
		assert.True(t, strings.HasSuffix(lines[3], "BUST"))
		assert.True(t, strings.HasSuffix(lines[4], "LOSE"))
	}
}

func TestRoundTally(t *testing.T) {
	tally := NewRoundTally()
	tally.OnRoundSettled(table.RoundOutcome{WinnerIDs: []string{game.DealerID}})
	tally.OnRoundSettled(table.RoundOutcome{WinnerIDs: []string{"a", "b"}})
	tally.OnRoundSettled(table.RoundOutcome{WinnerIDs: []string{"c"}})

	rounds, dealer, players := tally.Snapshot()
	assert.Equal(t, 3, rounds)
	assert.Equal(t, 1, dealer)
	assert.Equal(t, 3, players)
}
