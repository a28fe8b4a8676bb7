package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/loteria-backend/internal/apperr"
	"github.com/DoyleJ11/loteria-backend/internal/deck"
	"github.com/DoyleJ11/loteria-backend/internal/engine"
	"github.com/DoyleJ11/loteria-backend/internal/lobby"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		req      string
		err      error
		wantType string
		wantCode string
		wantKind apperr.Kind
	}{
		{"not host", StartGame, engine.ErrNotHost, Error, "not-host", apperr.KindAuthorization},
		{"unknown lobby", JoinLobby, lobby.ErrLobbyNotFound, Error, "lobby-not-found", apperr.KindNotFound},
		{"late claim", ClaimWin, engine.ErrGameAlreadyFinished, WinRejected, "game-already-finished", apperr.KindStateConflict},
		{"exhausted", CallNextCard, engine.ErrDeckExhausted, DeckExhausted, "deck-exhausted", apperr.KindExhaustion},
		{"unexpected", StartGame, errors.New("boom"), Error, "internal-error", apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FromError(tt.req, "ABC123", tt.err)
			assert.Equal(t, tt.wantType, msg.Type)
			assert.Equal(t, tt.wantCode, msg.Code)
			assert.Equal(t, tt.wantKind, msg.Kind)
			assert.Equal(t, "ABC123", msg.LobbyCode)
		})
	}

	assert.Equal(t, "game-already-finished", FromError(ClaimWin, "", engine.ErrGameAlreadyFinished).Reason)
	assert.Equal(t, "internal error", FromError(StartGame, "", errors.New("secret detail")).Error)
}

func TestFromNotice_CardCalled(t *testing.T) {
	card := deck.Card{ID: 7, Name: "La Escalera"}
	view := lobby.View{Code: "ABC123", Session: engine.State{Called: []deck.Card{card}}}
	msg := FromNotice(lobby.Notice{Type: lobby.NoticeCardCalled, Version: 4, View: view, Card: &card})

	assert.Equal(t, "card-called", msg.Type)
	assert.Equal(t, 4, msg.Version)
	assert.Equal(t, &card, msg.Card)
	assert.Equal(t, []deck.Card{card}, msg.Called)
}

func TestServerMessage_HidesRemainingDeck(t *testing.T) {
	view := lobby.View{Code: "ABC123", Session: engine.State{Remaining: deck.AllCards()}}
	b, err := json.Marshal(FromNotice(lobby.Notice{Type: lobby.NoticeGameStarted, View: view}))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "El Gallo")
}
