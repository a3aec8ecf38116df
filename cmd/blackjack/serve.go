package main

import (
	"os"
	"time"

	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/lox/blackjack/internal/auth"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/server"
	"github.com/lox/blackjack/internal/store"
	"github.com/lox/blackjack/internal/table"
)

// ServeCmd runs the HTTP and WebSocket server. Flags override the config
// file.
type ServeCmd struct {
	Addr        string        `help:"Address to bind to (overrides config)"`
	Port        int           `help:"Port to listen on (overrides config)"`
	LogLevel    string        `short:"l" help:"Log level: debug, info, warn, error (overrides config)"`
	Store       string        `help:"Store backend: memory, redis or postgres (overrides config)"`
	IdleTimeout time.Duration `help:"Unseat players idle this long, 0 disables (overrides config)"`
	Seed        *int64        `help:"Deterministic shuffle seed (overrides config)"`
	PrintRounds bool          `help:"Print every settled round to stdout"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config, c.override)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Server.LogLevel)
	ctx, cancel := signalContext(logger)
	defer cancel()

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	seed := randutil.Seed(cfg.Table.Seed)
	logger.Info("Using shuffle seed", "seed", seed)

	tally := server.NewRoundTally()
	var printer table.RoundMonitor
	if c.PrintRounds {
		printer = server.NewRoundPrinter(os.Stdout, false)
	}

	tbl := table.New(st, randutil.NewLocked(seed), cfg.TableConfig(), logger,
		table.WithRoundMonitor(server.NewMultiRoundMonitor(tally, printer)))

	tokens := auth.NewJWT(cfg.Auth.Secret, cfg.TokenTTL())
	srv := server.NewServer(cfg.ListenAddress(), tbl, tokens, logger)
	tbl.AddPublisher(srv)

	if timeout := cfg.IdleTimeout(); timeout > 0 {
		evictor := table.NewEvictor(tbl, quartz.NewReal(), timeout, logger)
		tbl.AddPublisher(evictor)
		defer evictor.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Broadcast.Redis {
		client := redisClient(st, cfg)
		bridge := server.NewRedisBridge(client, cfg.Store.Prefix, srv, logger)
		tbl.AddPublisher(bridge)
		g.Go(func() error { return bridge.Run(gctx) })
	}

	tc := cfg.TableConfig()
	logger.Info("Starting blackjack server",
		"addr", cfg.ListenAddress(),
		"store", cfg.Store.Backend,
		"decks", tc.DecksAmount,
		"max_seats", tc.MaxSeats,
		"dealer_stands_at", tc.Rules.DealerStandsAt,
		"dealer_bust_loses", tc.Rules.DealerBustLoses,
		"idle_timeout", cfg.IdleTimeout(),
		"redis_broadcast", cfg.Broadcast.Redis)

	g.Go(func() error { return srv.Start(gctx) })

	err = g.Wait()

	rounds, dealerWins, playerWins := tally.Snapshot()
	logger.Info("Server stopped", "rounds", rounds, "dealer_wins", dealerWins, "player_wins", playerWins)
	return err
}

func (c *ServeCmd) override(cfg *server.Config) {
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Store != "" {
		cfg.Store.Backend = c.Store
	}
	if c.IdleTimeout != 0 {
		cfg.Table.IdleTimeout = c.IdleTimeout.String()
	}
	if c.Seed != nil {
		cfg.Table.Seed = c.Seed
	}
}

// redisClient shares the store's pool when the store is Redis.
func redisClient(st store.Store, cfg *server.Config) *redis.Client {
	if rs, ok := st.(*store.Redis); ok {
		return rs.Client()
	}
	return redis.NewClient(&redis.Options{
		Addr: cfg.Store.RedisAddr,
		DB:   cfg.Store.RedisDB,
	})
}
