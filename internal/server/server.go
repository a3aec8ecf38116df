// Package server exposes the table over HTTP and pushes game updates to
// WebSocket subscribers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/lox/blackjack/internal/auth"
	"github.com/lox/blackjack/internal/player"
	"github.com/lox/blackjack/internal/table"
)

// Table is the subset of the orchestrator the transport drives.
type Table interface {
	SignUp(ctx context.Context, email string) (player.Player, error)
	Me(ctx context.Context, email string) (player.Player, error)
	StartGame(ctx context.Context, email string) (table.State, error)
	JoinGame(ctx context.Context, email, gameID string) (table.State, error)
	Deal(ctx context.Context, email, gameID string, decksAmount int) (table.State, error)
	Hit(ctx context.Context, email, gameID string) (table.State, error)
	Stand(ctx context.Context, email, gameID string) (table.State, error)
	Leave(ctx context.Context, email string) (player.Player, error)
	State(ctx context.Context, email, gameID string) (table.State, error)
}

// Tokens issues and validates bearer tokens.
type Tokens interface {
	auth.Validator
	Issue(email string) (string, error)
}

var (
	_ table.Publisher = (*Server)(nil)
	_ table.Publisher = (*RedisBridge)(nil)
)

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock driving WebSocket keepalive pings.
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// Server serves the HTTP API and the WebSocket hub. It implements
// table.Publisher so the orchestrator can push updates through it.
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	table       Table
	tokens      Tokens
	clock       quartz.Clock
	runOnce     sync.Once
}

// NewServer creates a new server
func NewServer(addr string, tbl Table, tokens Tokens, logger *log.Logger, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			// Browser clients are served from other origins; the token is
			// what authorizes a socket.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
		table:       tbl,
		tokens:      tokens,
		clock:       quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes. The connection loop is started on first
// use.
func (s *Server) Handler() http.Handler {
	s.runOnce.Do(func() { go s.run() })

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /auth/login", s.handleLogin)

	mux.Handle("GET /api/me", s.authenticated(s.handleMe))
	mux.Handle("GET /api/game-state", s.authenticated(s.handleGameState))
	mux.Handle("POST /api/start-game", s.authenticated(s.handleStartGame))
	mux.Handle("POST /api/join-game", s.authenticated(s.handleJoinGame))
	mux.Handle("POST /api/leave-game", s.authenticated(s.handleLeaveGame))
	mux.Handle("POST /api/deal", s.authenticated(s.handleDeal))
	mux.Handle("POST /api/hit", s.authenticated(s.handleHit))
	mux.Handle("POST /api/stand", s.authenticated(s.handleStand))

	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		_ = s.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	_ = s.Stop()
	return err
}

// Stop closes every WebSocket connection.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
	s.mu.Unlock()

	return nil
}

// run handles connection lifecycle
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "player", conn.Player(), "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			_, ok := s.connections[conn]
			delete(s.connections, conn)
			remaining := s.connectedLocked(conn.Player())
			total := len(s.connections)
			s.mu.Unlock()
			if !ok {
				continue
			}
			_ = conn.Close() // Ignore close errors during unregistration
			s.logger.Info("Client disconnected", "player", conn.Player(), "total", total)

			// A player whose last socket goes away leaves their game.
			if email := conn.Player(); email != "" && !remaining {
				go s.leave(email)
			}

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) connectedLocked(email string) bool {
	for conn := range s.connections {
		if conn.Player() == email {
			return true
		}
	}
	return false
}

func (s *Server) leave(email string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.table.Leave(ctx, email); err != nil {
		s.logger.Warn("Failed to leave game on disconnect", "player", email, "error", err)
	}
}

// handleWebSocket upgrades an authenticated request. The token travels in
// the query string because browsers cannot set headers on a socket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := s.tokens.Validate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeUnauthorized(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, identity.Email, s.table, s.clock, s.logger)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		_ = client.Close()
		return
	}
	client.Start()

	go func() {
		<-client.ctx.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

// Publish pushes ev to the sockets subscribed to its game.
func (s *Server) Publish(_ context.Context, ev table.Event) error {
	if ev.Type == table.EventGameClosed {
		msg, err := NewMessage(MessageTypeGameClosed, GameClosedData{GameID: ev.GameID})
		if err != nil {
			return err
		}
		s.BroadcastToGame(ev.GameID, msg)

		s.mu.RLock()
		for conn := range s.connections {
			conn.Unsubscribe(ev.GameID)
		}
		s.mu.RUnlock()
		return nil
	}

	if ev.State == nil {
		return nil
	}
	msg, err := NewMessage(MessageTypeGameUpdate, ev.State)
	if err != nil {
		return err
	}
	s.BroadcastToGame(ev.GameID, msg)
	return nil
}

// BroadcastToGame sends a message to all connections subscribed to a game
func (s *Server) BroadcastToGame(gameID string, msg *Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for conn := range s.connections {
		if !conn.Subscribed(gameID) {
			continue
		}
		if err := conn.SendMessage(msg); err != nil {
			s.logger.Error("Failed to send message to client", "error", err, "player", conn.Player())
		} else {
			count++
		}
	}

	s.logger.Debug("Broadcasted message", "room", Room(gameID), "type", msg.Type, "recipients", count)
}

// ConnectedPlayers returns the emails with at least one open socket.
func (s *Server) ConnectedPlayers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var players []string
	for conn := range s.connections {
		if email := conn.Player(); email != "" && !seen[email] {
			seen[email] = true
			players = append(players, email)
		}
	}
	return players
}
