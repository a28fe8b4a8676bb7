package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/loteria-backend/internal/apperr"
	"github.com/DoyleJ11/loteria-backend/internal/artwork"
	"github.com/DoyleJ11/loteria-backend/internal/deck"
	"github.com/DoyleJ11/loteria-backend/internal/engine"
	"github.com/DoyleJ11/loteria-backend/internal/hub"
	"github.com/DoyleJ11/loteria-backend/internal/identity"
	"github.com/DoyleJ11/loteria-backend/internal/lobby"
	"github.com/DoyleJ11/loteria-backend/internal/stats"
)

func newRouter(t *testing.T, d Deps) (http.Handler, *hub.Hub) {
	t.Helper()
	h := hub.NewHub(context.Background(), hub.Options{
		Lobby: lobby.Options{MinPlayers: 1, ReconnectGrace: time.Minute},
	})
	t.Cleanup(h.Shutdown)
	art, err := artwork.NewResolver("https://cdn.example.com/cards")
	require.NoError(t, err)

	d.Hub = h
	if d.Artwork == nil {
		d.Artwork = art
	}
	return SetupRoutes(d), h
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	r, _ := newRouter(t, Deps{})
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/healthz", "").Code)
}

func TestCreateAndGetLobby(t *testing.T) {
	r, _ := newRouter(t, Deps{})

	rec := do(t, r, http.MethodPost, "/lobbies", `{"player_name":"Rosa"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created createLobbyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.True(t, hub.ValidCode(created.Code))
	assert.Equal(t, created.PlayerID, created.Lobby.HostID)
	require.Len(t, created.Lobby.Players, 1)
	assert.Equal(t, "Rosa", created.Lobby.Players[0].DisplayName)
	assert.False(t, created.Lobby.Players[0].Connected)

	rec = do(t, r, http.MethodGet, "/lobbies/"+strings.ToLower(created.Code), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view lobby.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, created.Code, view.Code)
	assert.Equal(t, engine.PhaseWaiting, view.Session.Phase)

	rec = do(t, r, http.MethodGet, "/lobbies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Lobbies []lobby.View `json:"lobbies"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Lobbies, 1)
	assert.Equal(t, created.Code, list.Lobbies[0].Code)
}

func TestCreateLobby_BadInput(t *testing.T) {
	r, _ := newRouter(t, Deps{})

	rec := do(t, r, http.MethodPost, "/lobbies", `{"player_name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/lobbies", `{"player_name":"`+strings.Repeat("x", 64)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid-display-name")

	rec = do(t, r, http.MethodPost, "/lobbies?player_id=not-a-uuid", ``)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLobby_RequiresTokenWithJWT(t *testing.T) {
	r, _ := newRouter(t, Deps{Identity: identity.NewJWTResolver("secret")})
	rec := do(t, r, http.MethodPost, "/lobbies", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetLobby_NotFound(t *testing.T) {
	r, _ := newRouter(t, Deps{})
	rec := do(t, r, http.MethodGet, "/lobbies/QQQQQQ", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "lobby-not-found", body.Code)
	assert.Equal(t, apperr.KindNotFound, body.Kind)
}

func TestListCards(t *testing.T) {
	r, _ := newRouter(t, Deps{})

	rec := do(t, r, http.MethodGet, "/cards?theme=modern", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Theme string            `json:"theme"`
		Cards []artwork.CardArt `json:"cards"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "modern", body.Theme)
	require.Len(t, body.Cards, deck.Size)
	assert.Equal(t, "https://cdn.example.com/cards/modern/el-gallo.png", body.Cards[0].ImageURL)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/cards?theme=neon", "").Code)
}

func TestGetCard(t *testing.T) {
	r, _ := newRouter(t, Deps{})

	rec := do(t, r, http.MethodGet, "/cards/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var card artwork.CardArt
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&card))
	assert.Equal(t, "El Gallo", card.Name)
	assert.Equal(t, "https://cdn.example.com/cards/classic/el-gallo.png", card.ImageURL)

	for _, path := range []string{"/cards/99", "/cards/gallo"} {
		rec = do(t, r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		var body errorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "card-not-found", body.Code)
	}
}

type stubStats struct {
	stats.NopStore
	err error
}

func (s stubStats) PlayerStats(_ context.Context, id string) (stats.Summary, error) {
	if s.err != nil {
		return stats.Summary{}, s.err
	}
	return stats.Summary{PlayerID: id, GamesPlayed: 3, GamesWon: 1}, nil
}

func TestPlayerStats(t *testing.T) {
	r, _ := newRouter(t, Deps{Stats: stubStats{}})
	rec := do(t, r, http.MethodGet, "/players/p1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum stats.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sum))
	assert.Equal(t, stats.Summary{PlayerID: "p1", GamesPlayed: 3, GamesWon: 1}, sum)

	r, _ = newRouter(t, Deps{Stats: stubStats{err: errors.New("db down")}})
	rec = do(t, r, http.MethodGet, "/players/p1/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{lobby.ErrLobbyNotFound, http.StatusNotFound},
		{engine.ErrNotHost, http.StatusForbidden},
		{identity.ErrUnauthenticated, http.StatusUnauthorized},
		{engine.ErrRoundInProgress, http.StatusConflict},
		{hub.ErrCodeGenerationExhausted, http.StatusConflict},
		{apperr.Invalid("x"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
