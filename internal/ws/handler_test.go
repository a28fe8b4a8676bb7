package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/loteria-backend/internal/hub"
	"github.com/DoyleJ11/loteria-backend/internal/identity"
	"github.com/DoyleJ11/loteria-backend/internal/lobby"
	"github.com/DoyleJ11/loteria-backend/internal/types"
)

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	h := hub.NewHub(context.Background(), hub.Options{
		Lobby: lobby.Options{MinPlayers: 1, ReconnectGrace: time.Minute},
	})
	srv := httptest.NewServer(Handler(h, opts))
	t.Cleanup(func() {
		srv.Close()
		h.Shutdown()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, playerID, name string) *websocket.Conn {
	t.Helper()
	q := url.Values{"player_id": {playerID}, "name": {name}}
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + q.Encode()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func send(t *testing.T, c *websocket.Conn, msg types.ClientMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, c, msg))
}

func next(t *testing.T, c *websocket.Conn) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var msg types.ServerMessage
	require.NoError(t, wsjson.Read(ctx, c, &msg))
	return msg
}

func expect(t *testing.T, c *websocket.Conn, typ string) types.ServerMessage {
	t.Helper()
	msg := next(t, c)
	require.Equal(t, typ, msg.Type, "unexpected message %+v", msg)
	return msg
}

func createLobby(t *testing.T, host *websocket.Conn) string {
	t.Helper()
	send(t, host, types.ClientMessage{Type: types.CreateLobby, PlayerName: "Host"})
	created := expect(t, host, types.LobbyCreated)
	require.NotNil(t, created.Lobby)
	require.True(t, hub.ValidCode(created.LobbyCode))
	return created.LobbyCode
}

func TestGateway_CreateJoinStartPlay(t *testing.T) {
	srv := newTestServer(t, Options{})
	hostID, guestID := uuid.NewString(), uuid.NewString()
	host := dial(t, srv, hostID, "Host")
	guest := dial(t, srv, guestID, "Guest")

	code := createLobby(t, host)

	send(t, guest, types.ClientMessage{Type: types.JoinLobby, LobbyCode: strings.ToLower(code), PlayerName: "Lupe"})
	for _, c := range []*websocket.Conn{host, guest} {
		upd := expect(t, c, "lobby-updated")
		require.Len(t, upd.Lobby.Players, 2)
		assert.Equal(t, hostID, upd.Lobby.HostID)
		assert.Equal(t, "Lupe", upd.Lobby.Players[1].DisplayName)
	}

	send(t, host, types.ClientMessage{Type: types.StartGame})
	for _, c := range []*websocket.Conn{host, guest} {
		started := expect(t, c, "game-started")
		assert.Len(t, started.Boards, 2)
		assert.Contains(t, started.Boards, guestID)
	}

	// Errors go only to the requester.
	send(t, guest, types.ClientMessage{Type: types.StartGame})
	rej := expect(t, guest, types.Error)
	assert.Equal(t, "not-host", rej.Code)
	assert.Equal(t, "authorization", string(rej.Kind))

	send(t, host, types.ClientMessage{Type: types.CallNextCard, LobbyCode: code})
	for _, c := range []*websocket.Conn{host, guest} {
		called := expect(t, c, "card-called")
		require.NotNil(t, called.Card)
		assert.Len(t, called.Called, 1)
	}

	send(t, guest, types.ClientMessage{Type: types.ClaimWin})
	claim := expect(t, guest, types.WinRejected)
	assert.Equal(t, "no-winning-pattern", claim.Reason)

	send(t, guest, types.ClientMessage{Type: types.LeaveLobby})
	left := expect(t, guest, types.LeftLobby)
	assert.Equal(t, code, left.LobbyCode)

	upd := expect(t, host, "lobby-updated")
	assert.Len(t, upd.Lobby.Players, 1)
}

func TestGateway_JoinUnknownLobby(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := dial(t, srv, uuid.NewString(), "Solo")

	send(t, c, types.ClientMessage{Type: types.JoinLobby, LobbyCode: "ZZZZZZ"})
	msg := expect(t, c, types.Error)
	assert.Equal(t, "lobby-not-found", msg.Code)
	assert.Equal(t, "not_found", string(msg.Kind))
}

func TestGateway_BadInput(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := dial(t, srv, uuid.NewString(), "Solo")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{not json")))
	assert.Equal(t, "invalid-payload", expect(t, c, types.Error).Code)

	send(t, c, types.ClientMessage{Type: "shout"})
	assert.Equal(t, "invalid-payload", expect(t, c, types.Error).Code)

	send(t, c, types.ClientMessage{Type: types.CallNextCard})
	assert.Equal(t, "not-in-lobby", expect(t, c, types.Error).Code)
}

func TestGateway_DisconnectKeepsSeat(t *testing.T) {
	srv := newTestServer(t, Options{})
	hostID, guestID := uuid.NewString(), uuid.NewString()
	host := dial(t, srv, hostID, "Host")
	code := createLobby(t, host)

	guest := dial(t, srv, guestID, "Guest")
	send(t, guest, types.ClientMessage{Type: types.JoinLobby, LobbyCode: code})
	expect(t, host, "lobby-updated")
	expect(t, guest, "lobby-updated")

	guest.Close(websocket.StatusNormalClosure, "")

	upd := expect(t, host, "lobby-updated")
	require.Len(t, upd.Lobby.Players, 2)
	assert.False(t, upd.Lobby.Players[1].Connected)

	// Reconnecting with the same identity and the code reclaims the seat.
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + url.Values{"player_id": {guestID}, "code": {code}}.Encode()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	again, _, err := websocket.Dial(ctx, u, nil)
	require.NoError(t, err)
	defer again.Close(websocket.StatusNormalClosure, "")

	upd = expect(t, host, "lobby-updated")
	require.Len(t, upd.Lobby.Players, 2)
	assert.True(t, upd.Lobby.Players[1].Connected)
}

func TestGateway_RejectsUnauthenticated(t *testing.T) {
	srv := newTestServer(t, Options{Resolver: identity.NewJWTResolver("secret")})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// collect reads n messages and indexes them by type; used where two
// subscriptions feed one socket and order between them is not fixed.
func collect(t *testing.T, c *websocket.Conn, n int) map[string]types.ServerMessage {
	t.Helper()
	got := make(map[string]types.ServerMessage, n)
	for i := 0; i < n; i++ {
		msg := next(t, c)
		got[msg.Type] = msg
	}
	return got
}

func TestGateway_LastLeaveClosesLobby(t *testing.T) {
	srv := newTestServer(t, Options{})
	host := dial(t, srv, uuid.NewString(), "Host")
	code := createLobby(t, host)

	send(t, host, types.ClientMessage{Type: types.LeaveLobby})
	got := collect(t, host, 2)

	require.Contains(t, got, types.LeftLobby)
	require.Contains(t, got, "lobby-closed")
	assert.Equal(t, code, got["lobby-closed"].LobbyCode)
}

func TestGateway_RejectedJoinKeepsCurrentSeat(t *testing.T) {
	srv := newTestServer(t, Options{})
	a := dial(t, srv, uuid.NewString(), "Ana")
	b := dial(t, srv, uuid.NewString(), "Beto")

	mine := createLobby(t, a)
	theirs := createLobby(t, b)
	send(t, b, types.ClientMessage{Type: types.StartGame})
	expect(t, b, "game-started")

	send(t, a, types.ClientMessage{Type: types.JoinLobby, LobbyCode: theirs})
	rej := expect(t, a, types.Error)
	assert.Equal(t, "lobby-already-started", rej.Code)

	// Still host of the original lobby.
	send(t, a, types.ClientMessage{Type: types.StartGame, LobbyCode: mine})
	started := expect(t, a, "game-started")
	assert.Equal(t, mine, started.LobbyCode)
}

func TestGateway_JoinAnotherLobbyMovesSeat(t *testing.T) {
	srv := newTestServer(t, Options{})
	a := dial(t, srv, uuid.NewString(), "Ana")
	b := dial(t, srv, uuid.NewString(), "Beto")

	mine := createLobby(t, a)
	theirs := createLobby(t, b)

	send(t, a, types.ClientMessage{Type: types.JoinLobby, LobbyCode: theirs})
	got := collect(t, a, 3)

	require.Contains(t, got, types.LeftLobby)
	assert.Equal(t, mine, got[types.LeftLobby].LobbyCode)
	require.Contains(t, got, "lobby-closed")
	assert.Equal(t, mine, got["lobby-closed"].LobbyCode)
	require.Contains(t, got, "lobby-updated")
	assert.Equal(t, theirs, got["lobby-updated"].LobbyCode)
	assert.Len(t, got["lobby-updated"].Lobby.Players, 2)

	upd := expect(t, b, "lobby-updated")
	assert.Len(t, upd.Lobby.Players, 2)
}
