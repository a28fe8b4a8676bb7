package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/loteria-backend/internal/apperr"
	"github.com/DoyleJ11/loteria-backend/internal/artwork"
	"github.com/DoyleJ11/loteria-backend/internal/hub"
	"github.com/DoyleJ11/loteria-backend/internal/identity"
	"github.com/DoyleJ11/loteria-backend/internal/lobby"
	"github.com/DoyleJ11/loteria-backend/internal/stats"
)

type createLobbyRequest struct {
	PlayerName string `json:"player_name"`
}

type createLobbyResponse struct {
	Code     string     `json:"code"`
	PlayerID string     `json:"player_id"`
	Lobby    lobby.View `json:"lobby"`
}

// CreateLobby opens a lobby for the caller. The caller is not connected yet;
// they keep the host seat for the reconnection grace period and claim it by
// opening /ws?code=...
func CreateLobby(h *hub.Hub, ids identity.Resolver, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := ids.Resolve(r)
		if err != nil {
			writeError(w, log, err)
			return
		}

		var req createLobbyRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, log, apperr.Invalid("malformed body"))
			return
		}
		if who, err = who.WithName(req.PlayerName); err != nil {
			writeError(w, log, err)
			return
		}

		creator := lobby.Player{ID: who.PlayerID, DisplayName: who.DisplayName, Email: who.Email}
		lb, err := h.Create(r.Context(), creator, nil)
		if err != nil {
			writeError(w, log, err)
			return
		}
		view, err := lb.View(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}

		log.Info("lobby created over http", zap.String("code", view.Code), zap.String("player", who.PlayerID))
		writeJSON(w, http.StatusCreated, createLobbyResponse{Code: view.Code, PlayerID: who.PlayerID, Lobby: view})
	}
}

func ListLobbies(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := h.ListActive(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Lobbies []lobby.View `json:"lobbies"`
		}{Lobbies: views})
	}
}

func GetLobby(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.Get(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func ListCards(art *artwork.Resolver, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		theme, err := artwork.ParseTheme(r.URL.Query().Get("theme"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Theme artwork.Theme     `json:"theme"`
			Cards []artwork.CardArt `json:"cards"`
		}{Theme: theme, Cards: art.Catalog(theme)})
	}
}

func GetCard(art *artwork.Resolver, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		theme, err := artwork.ParseTheme(r.URL.Query().Get("theme"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, log, artwork.ErrUnknownCard)
			return
		}
		card, err := art.Card(id, theme)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func PlayerStats(store stats.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := store.PlayerStats(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuthorization:
		if errors.Is(err, identity.ErrUnauthenticated) {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case apperr.KindStateConflict, apperr.KindExhaustion:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string      `json:"error"`
	Code  string      `json:"code"`
	Kind  apperr.Kind `json:"kind"`
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: apperr.Public(err), Code: apperr.CodeOf(err), Kind: apperr.KindOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
