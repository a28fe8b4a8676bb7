package hub

import (
	"context"
	"crypto/rand"
	"math/big"
	"slices"
	"strings"

	"github.com/DoyleJ11/loteria-backend/internal/lobby"
)

const (
	CodeLength  = 6
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func GenerateCode() (string, error) {
	code := make([]byte, CodeLength)
	for i := 0; i < CodeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

// ValidCode reports whether code has the shape of a lobby code.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(codeCharset, r) {
			return false
		}
	}
	return true
}

// Create allocates a fresh code and starts a lobby hosted by creator.
func (h *Hub) Create(ctx context.Context, creator lobby.Player, outbox chan lobby.Notice) (*lobby.Lobby, error) {
	reply := make(chan CreateResult, 1)
	if err := h.send(ctx, CreateLobby{Creator: creator, Outbox: outbox, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Lobby, res.Err
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Lookup(ctx context.Context, code string) (*lobby.Lobby, error) {
	code = NormalizeCode(code)
	if !ValidCode(code) {
		return nil, lobby.ErrLobbyNotFound
	}

	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case lb := <-reply:
		if lb == nil {
			return nil, lobby.ErrLobbyNotFound
		}
		return lb, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the current view of the lobby with code.
func (h *Hub) Get(ctx context.Context, code string) (lobby.View, error) {
	lb, err := h.Lookup(ctx, code)
	if err != nil {
		return lobby.View{}, err
	}
	return lb.View(ctx)
}

// ListActive returns every lobby that still has players, oldest first.
// Lobbies are queried after the table is read, so one that empties in
// between is simply left out.
func (h *Hub) ListActive(ctx context.Context) ([]lobby.View, error) {
	reply := make(chan []*lobby.Lobby, 1)
	if err := h.send(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}

	var all []*lobby.Lobby
	select {
	case all = <-reply:
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	views := make([]lobby.View, 0, len(all))
	for _, lb := range all {
		v, err := lb.View(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if len(v.Players) > 0 {
			views = append(views, v)
		}
	}
	slices.SortFunc(views, func(a, b lobby.View) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
	return views, nil
}

// Shutdown stops every lobby and the hub loop.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
