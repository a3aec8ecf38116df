package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/lox/blackjack/internal/auth"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/player"
	"github.com/lox/blackjack/internal/store"
	"github.com/lox/blackjack/internal/table"
)

// maxBodySize bounds request bodies; every payload is a handful of fields.
const maxBodySize = 1 << 16

var (
	errBadRequest         = errors.New("bad request")
	errInvalidDecksAmount = errors.New("decksAmount should be type of number")
)

type identityKey struct{}

// credentialsRequest is the body of /auth/signup and /auth/login.
type credentialsRequest struct {
	Email string `json:"email"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type gameRequest struct {
	GameID string `json:"gameId"`
}

type dealRequest struct {
	GameID      string          `json:"gameId"`
	DecksAmount json.RawMessage `json:"decksAmount"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	p, err := s.table.SignUp(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.issueToken(w, p.Email)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := player.ValidateEmail(req.Email); err != nil {
		s.writeError(w, err)
		return
	}

	p, err := s.table.Me(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.issueToken(w, p.Email)
}

func (s *Server) issueToken(w http.ResponseWriter, email string) {
	token, err := s.tokens.Issue(email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, err := s.table.Me(r.Context(), email(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table.NewPlayerView(p))
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("gameId")
	if gameID == "" {
		s.writeError(w, fmt.Errorf("%w: gameId is required", errBadRequest))
		return
	}
	s.respondState(w)(s.table.State(r.Context(), email(r.Context()), gameID))
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	s.respondState(w)(s.table.StartGame(r.Context(), email(r.Context())))
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := decodeGameID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respondState(w)(s.table.JoinGame(r.Context(), email(r.Context()), gameID))
}

func (s *Server) handleLeaveGame(w http.ResponseWriter, r *http.Request) {
	p, err := s.table.Leave(r.Context(), email(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table.NewPlayerView(p))
}

func (s *Server) handleDeal(w http.ResponseWriter, r *http.Request) {
	var req dealRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.GameID == "" {
		s.writeError(w, fmt.Errorf("%w: gameId is required", errBadRequest))
		return
	}
	decks, err := parseDecksAmount(req.DecksAmount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respondState(w)(s.table.Deal(r.Context(), email(r.Context()), req.GameID, decks))
}

func (s *Server) handleHit(w http.ResponseWriter, r *http.Request) {
	gameID, err := decodeGameID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respondState(w)(s.table.Hit(r.Context(), email(r.Context()), gameID))
}

func (s *Server) handleStand(w http.ResponseWriter, r *http.Request) {
	gameID, err := decodeGameID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respondState(w)(s.table.Stand(r.Context(), email(r.Context()), gameID))
}

func (s *Server) respondState(w http.ResponseWriter) func(table.State, error) {
	return func(state table.State, err error) {
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

// authenticated rejects requests without a valid bearer token and stores
// the caller's email in the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeUnauthorized(w, err)
			return
		}
		identity, err := s.tokens.Validate(r.Context(), token)
		if err != nil {
			s.logger.Debug("Rejected token", "error", err)
			writeUnauthorized(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity.Email)
		next(w, r.WithContext(ctx))
	})
}

func email(ctx context.Context) string {
	e, _ := ctx.Value(identityKey{}).(string)
	return e
}

// parseDecksAmount accepts an absent or null value (the table default) or a
// positive integer.
func parseDecksAmount(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}

	var value any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return 0, errInvalidDecksAmount
	}
	n, ok := value.(json.Number)
	if !ok {
		return 0, errInvalidDecksAmount
	}
	v, err := n.Int64()
	if err != nil {
		return 0, errInvalidDecksAmount
	}
	if v < 1 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: got %d", deck.ErrInvalidDecksAmount, v)
	}
	return int(v), nil
}

func decodeGameID(r *http.Request) (string, error) {
	var req gameRequest
	if err := decodeBody(r, &req); err != nil {
		return "", err
	}
	if req.GameID == "" {
		return "", fmt.Errorf("%w: gameId is required", errBadRequest)
	}
	return req.GameID, nil
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: malformed JSON body", errBadRequest)
	}
	return nil
}

// classify maps a domain error to an HTTP status and the message shown to
// the client.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidDecksAmount):
		return http.StatusBadRequest, errInvalidDecksAmount.Error()
	case errors.Is(err, errBadRequest),
		errors.Is(err, deck.ErrInvalidDeck),
		errors.Is(err, deck.ErrInvalidDecksAmount),
		errors.Is(err, player.ErrInvalidEmail),
		errors.Is(err, game.ErrBust),
		errors.Is(err, game.ErrDeckExhausted),
		errors.Is(err, game.ErrInvalidDeal):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, game.ErrNotFound),
		errors.Is(err, player.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, player.ErrAlreadySeated),
		errors.Is(err, player.ErrNotParticipant),
		errors.Is(err, player.ErrEmailTaken),
		errors.Is(err, table.ErrNotYourTurn),
		errors.Is(err, table.ErrRoundInProgress),
		errors.Is(err, table.ErrTableFull),
		errors.Is(err, table.ErrNotDealt),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid token"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, message := classify(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	} else {
		s.logger.Debug("Request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Message: message})
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	_, message := classify(err)
	writeJSON(w, http.StatusUnauthorized, errorResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // Ignore write errors to a gone client
}
