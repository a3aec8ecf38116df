package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjack/internal/auth"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/store"
	"github.com/lox/blackjack/internal/table"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

type testServer struct {
	t      *testing.T
	srv    *Server
	http   *httptest.Server
	table  *table.Orchestrator
	tokens *auth.JWT
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := testLogger()
	tbl := table.New(store.NewMemory(), randutil.NewLocked(7), table.Config{}, logger)
	tokens := auth.NewJWT("test-secret", time.Hour)
	srv := NewServer("", tbl, tokens, logger)
	tbl.AddPublisher(srv)

	ts := &testServer{t: t, srv: srv, table: tbl, tokens: tokens}
	ts.http = httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Stop()
		ts.http.Close()
	})
	return ts
}

// do sends a JSON request and decodes the JSON response into out.
func (ts *testServer) do(method, path, token string, body any, out any) int {
	ts.t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.http.URL+path, rd)
	require.NoError(ts.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(ts.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ts *testServer) signUp(email string) string {
	ts.t.Helper()
	var tok tokenResponse
	status := ts.do(http.MethodPost, "/auth/signup", "", credentialsRequest{Email: email}, &tok)
	require.Equal(ts.t, http.StatusOK, status)
	require.NotEmpty(ts.t, tok.Token)
	return tok.Token
}

func (ts *testServer) dial(token string) *websocket.Conn {
	ts.t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServerHealth(t *testing.T) {
	srv := NewServer("", nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	token := ts.signUp("alice@example.com")

	var errResp errorResponse
	status := ts.do(http.MethodPost, "/auth/signup", "", credentialsRequest{Email: "alice@example.com"}, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "user already exists", errResp.Message)

	status = ts.do(http.MethodPost, "/auth/signup", "", credentialsRequest{Email: "not-an-email"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "email should be type of email", errResp.Message)

	var login tokenResponse
	status = ts.do(http.MethodPost, "/auth/login", "", credentialsRequest{Email: "alice@example.com"}, &login)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, login.Token)

	status = ts.do(http.MethodPost, "/auth/login", "", credentialsRequest{Email: "nobody@example.com"}, &errResp)
	assert.Equal(t, http.StatusNotFound, status)

	var me table.PlayerView
	status = ts.do(http.MethodGet, "/api/me", token, nil, &me)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Nil(t, me.CurrentGameID)
}

func TestUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	var errResp errorResponse
	status := ts.do(http.MethodGet, "/api/me", "", nil, &errResp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", errResp.Message)

	status = ts.do(http.MethodGet, "/api/me", "garbage", nil, &errResp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid token", errResp.Message)

	forged, err := auth.NewJWT("other-secret", time.Hour).Issue("alice@example.com")
	require.NoError(t, err)
	status = ts.do(http.MethodGet, "/api/me", forged, nil, &errResp)
	assert.Equal(t, http.StatusUnauthorized, status)

	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGameFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice@example.com")
	bob := ts.signUp("bob@example.com")

	var state table.State
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/start-game", alice, nil, &state))
	require.NotEmpty(t, state.ID)
	assert.True(t, state.ReadyToDeal)
	gameID := state.ID

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/join-game", bob, gameRequest{GameID: gameID}, &state))
	require.Len(t, state.Players, 2)

	var errResp errorResponse
	status := ts.do(http.MethodPost, "/api/hit", alice, gameRequest{GameID: gameID}, &errResp)
	assert.Equal(t, http.StatusConflict, status, "hit before the deal")

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/deal", alice, map[string]any{"gameId": gameID}, &state))
	require.NotNil(t, state.PlayerIDTurn)
	assert.True(t, state.DealerTotal.Hidden)
	assert.Len(t, state.DealerCards, 1)
	for _, p := range state.Players {
		assert.Len(t, p.Cards, 2)
	}

	first := state.Players[0]
	tokens := map[string]string{"alice@example.com": alice, "bob@example.com": bob}
	other := tokens[state.Players[1].Email]

	status = ts.do(http.MethodPost, "/api/stand", other, gameRequest{GameID: gameID}, &errResp)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, table.ErrNotYourTurn.Error(), strings.SplitN(errResp.Message, ":", 2)[0])

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/stand", tokens[first.Email], gameRequest{GameID: gameID}, &state))
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/stand", other, gameRequest{GameID: gameID}, &state))

	assert.Nil(t, state.PlayerIDTurn)
	assert.NotEmpty(t, state.WinnerIDs)
	assert.False(t, state.DealerTotal.Hidden)
	assert.True(t, state.ReadyToDeal)

	var read table.State
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/game-state?gameId="+gameID, bob, nil, &read))
	assert.Equal(t, state.WinnerIDs, read.WinnerIDs)

	var left table.PlayerView
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/leave-game", bob, nil, &left))
	assert.Nil(t, left.CurrentGameID)
	assert.Equal(t, 1, left.Score.TotalGameFinished)

	status = ts.do(http.MethodGet, "/api/game-state?gameId="+gameID, bob, nil, &errResp)
	assert.Equal(t, http.StatusConflict, status, "no longer seated")
}

func TestDealValidatesDecksAmount(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice@example.com")

	var state table.State
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/start-game", alice, nil, &state))

	tests := []struct {
		name   string
		amount any
		status int
	}{
		{"string", "2", http.StatusBadRequest},
		{"fraction", 1.5, http.StatusBadRequest},
		{"zero", 0, http.StatusBadRequest},
		{"negative", -1, http.StatusBadRequest},
		{"object", map[string]int{"n": 1}, http.StatusBadRequest},
		{"above table limit", table.DefaultMaxDecks + 1, http.StatusBadRequest},
		{"overflowing deck size", int64(1) << 58, http.StatusBadRequest},
		{"beyond int64", json.RawMessage("100000000000000000000"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errResp errorResponse
			status := ts.do(http.MethodPost, "/api/deal", alice, map[string]any{"gameId": state.ID, "decksAmount": tt.amount}, &errResp)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, errResp.Message)
		})
	}

	var dealt table.State
	status := ts.do(http.MethodPost, "/api/deal", alice, map[string]any{"gameId": state.ID, "decksAmount": 2}, &dealt)
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, dealt.PlayerIDTurn)
}

func TestParseDecksAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"null", 0, false},
		{"3", 3, false},
		{`"3"`, 0, true},
		{"true", 0, true},
		{"2.5", 0, true},
		{"0", 0, true},
		{"288230376151711744", 0, true},
		{"100000000000000000000", 0, true},
	}
	for _, tt := range tests {
		got, err := parseDecksAmount(json.RawMessage(tt.raw))
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		assert.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestWebSocketReceivesGameUpdates(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice@example.com")

	var state table.State
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/start-game", alice, nil, &state))

	conn := ts.dial(alice)

	sub, err := NewMessage(MessageTypeSubscribe, SubscriptionData{GameID: state.ID})
	require.NoError(t, err)
	sub.RequestID = "req-1"
	require.NoError(t, conn.WriteJSON(sub))

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeGameUpdate, msg.Type)
	assert.Equal(t, "req-1", msg.RequestID)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/deal", alice, map[string]any{"gameId": state.ID}, &state))

	msg = readMessage(t, conn)
	require.Equal(t, MessageTypeGameUpdate, msg.Type)
	var pushed table.State
	require.NoError(t, json.Unmarshal(msg.Data, &pushed))
	assert.Equal(t, state.ID, pushed.ID)
	assert.Equal(t, state.Turn(), pushed.Turn())

	unsub, err := NewMessage(MessageTypeUnsubscribe, SubscriptionData{GameID: state.ID})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(unsub))

	bad, err := NewMessage("bogus", nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(bad))

	// Messages are handled in order, so once the error arrives the
	// unsubscribe has taken effect.
	msg = readMessage(t, conn)
	require.Equal(t, MessageTypeError, msg.Type)

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/stand", alice, gameRequest{GameID: state.ID}, &state))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var unexpected Message
	assert.Error(t, conn.ReadJSON(&unexpected), "no update after unsubscribing")
}

func TestWebSocketSubscribeRequiresSeat(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice@example.com")
	bob := ts.signUp("bob@example.com")

	var state table.State
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/start-game", alice, nil, &state))

	conn := ts.dial(bob)
	sub, err := NewMessage(MessageTypeSubscribe, SubscriptionData{GameID: state.ID})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(sub))

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeError, msg.Type)
	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "conflict", data.Code)
}

func TestDisconnectLeavesGame(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice@example.com")

	var state table.State
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/start-game", alice, nil, &state))

	conn := ts.dial(alice)
	require.Eventually(t, func() bool {
		return len(ts.srv.ConnectedPlayers()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		p, err := ts.table.Me(context.Background(), "alice@example.com")
		return err == nil && !p.Seated()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPublishGameClosedDropsSubscriptions(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signUp("alice@example.com")
	bob := ts.signUp("bob@example.com")

	var state table.State
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/start-game", alice, nil, &state))
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/join-game", bob, gameRequest{GameID: state.ID}, &state))

	conn := ts.dial(alice)
	sub, err := NewMessage(MessageTypeSubscribe, SubscriptionData{GameID: state.ID})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(sub))
	require.Equal(t, MessageTypeGameUpdate, readMessage(t, conn).Type)

	require.NoError(t, ts.srv.Publish(context.Background(), table.Event{Type: table.EventGameClosed, GameID: state.ID}))

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeGameClosed, msg.Type)
	var data GameClosedData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, state.ID, data.GameID)

	ts.srv.mu.RLock()
	for c := range ts.srv.connections {
		assert.False(t, c.Subscribed(state.ID))
	}
	ts.srv.mu.RUnlock()
}
