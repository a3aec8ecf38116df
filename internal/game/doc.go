// Package game implements the Blackjack game engine: the authoritative state
// of a round (remaining deck, dealer hand, whose turn, winners), dealing,
// hits, dealer play and scoring.
//
// # Basic Usage
//
//	repo := game.NewRepo(store.NewMemory())
//	e := game.NewEngine(repo, randutil.New(42), game.DefaultRules(), logger)
//	g, _ := e.CreateNewGame(ctx)
//	hands, _ := e.Deal(ctx, game.DealOptions{GameID: g.ID, PlayersAmount: 2, PlayerIDTurn: "p1"})
//	card, _ := e.Hit(ctx, g.ID, hands[0])
//
// # Scoring
//
// Total counts aces as 11. If the hand busts it is rescored with every ace as
// 1; there is no per-ace softening. PossibleWinners drops busted hands and
// keeps those tied on the highest total, preferring more cards on a tie.
//
// Engines are not safe for concurrent use. Concurrent writers to the same
// game are detected by the store's version check.
package game
