package types

import (
	"errors"

	"github.com/DoyleJ11/loteria-backend/internal/apperr"
	"github.com/DoyleJ11/loteria-backend/internal/deck"
	"github.com/DoyleJ11/loteria-backend/internal/engine"
	"github.com/DoyleJ11/loteria-backend/internal/lobby"
)

// Client message types.
const (
	CreateLobby  = "create-lobby"
	JoinLobby    = "join-lobby"
	LeaveLobby   = "leave-lobby"
	StartGame    = "start-game"
	CallNextCard = "call-next-card"
	ClaimWin     = "claim-win"
	ResetRound   = "reset-round"
)

// Server message types that are not lobby notices.
const (
	LobbyCreated  = "lobby-created"
	LeftLobby     = "left-lobby"
	WinRejected   = "win-rejected"
	DeckExhausted = "deck-exhausted"
	Error         = "error"
)

type ClientMessage struct {
	Type       string `json:"type"`
	LobbyCode  string `json:"lobby_code,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
}

type ServerMessage struct {
	Type      string                  `json:"type"`
	Version   int                     `json:"version,omitempty"`
	LobbyCode string                  `json:"lobby_code,omitempty"`
	PlayerID  string                  `json:"player_id,omitempty"`
	Lobby     *lobby.View             `json:"lobby,omitempty"`
	Boards    map[string]engine.Board `json:"boards,omitempty"`
	Card      *deck.Card              `json:"card,omitempty"`
	Called    []deck.Card             `json:"called,omitempty"`
	WinnerID  string                  `json:"winner_id,omitempty"`
	Win       *engine.Match           `json:"win,omitempty"`
	Reason    string                  `json:"reason,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Code      string                  `json:"code,omitempty"`
	Kind      apperr.Kind             `json:"kind,omitempty"`
}

func FromNotice(n lobby.Notice) ServerMessage {
	v := n.View
	msg := ServerMessage{Type: string(n.Type), Version: n.Version, LobbyCode: v.Code, Lobby: &v}
	switch n.Type {
	case lobby.NoticeGameStarted:
		msg.Boards = v.Session.Boards
	case lobby.NoticeCardCalled:
		msg.Card = n.Card
		msg.Called = v.Session.Called
	case lobby.NoticeWinConfirmed:
		msg.WinnerID = n.WinnerID
		msg.Win = n.Win
	case lobby.NoticeLobbyClosed:
		msg.Lobby = nil
	}
	return msg
}

// FromError builds the reply for a failed request of type reqType. Claim and
// call failures get their own message types; everything else is "error".
func FromError(reqType, lobbyCode string, err error) ServerMessage {
	msg := ServerMessage{
		Type:      Error,
		LobbyCode: lobbyCode,
		Error:     apperr.Public(err),
		Code:      apperr.CodeOf(err),
		Kind:      apperr.KindOf(err),
	}
	switch {
	case reqType == ClaimWin:
		msg.Type = WinRejected
		msg.Reason = msg.Code
	case reqType == CallNextCard && errors.Is(err, engine.ErrDeckExhausted):
		msg.Type = DeckExhausted
	}
	return msg
}
