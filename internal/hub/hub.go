package hub

import (
	"context"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/loteria-backend/internal/apperr"
	"github.com/DoyleJ11/loteria-backend/internal/lobby"
)

var ErrCodeGenerationExhausted = apperr.New(apperr.KindExhaustion, "code-generation-exhausted", "could not allocate a lobby code")
var ErrHubClosed = apperr.New(apperr.KindInternal, "hub-closed", "server is shutting down")

// maxCodeAttempts bounds collision retries. With 36^6 codes this is only
// reached when the generator itself is broken.
const maxCodeAttempts = 16

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Creator lobby.Player
	Outbox  chan lobby.Notice
	Reply   chan CreateResult
}

type CreateResult struct {
	Lobby *lobby.Lobby
	Err   error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type ListLobbies struct {
	Reply chan []*lobby.Lobby
}

// RemoveLobby deletes Code only while it still maps to Lobby.
type RemoveLobby struct {
	Code  string
	Lobby *lobby.Lobby
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (ListLobbies) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	// Lobby is the template every new lobby is started with. A template
	// Rand is only read by the hub loop; each lobby gets its own source.
	Lobby   lobby.Options
	NewCode func() (string, error)
	Logger  *zap.Logger
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.NewCode == nil {
		opts.NewCode = GenerateCode
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Lobby.Logger == nil {
		opts.Lobby.Logger = opts.Logger
	}

	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		opts:    opts,
		log:     opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				code, err := h.freshCode()
				if err != nil {
					h.log.Error("lobby code generation failed", zap.Error(err))
					msg.Reply <- CreateResult{Err: err}
					break
				}

				opts := h.opts.Lobby
				opts.OnEmpty = h.onEmpty
				if opts.Rand != nil {
					// Seeded from the template so runs stay reproducible.
					opts.Rand = rand.New(rand.NewPCG(h.opts.Lobby.Rand.Uint64(), h.opts.Lobby.Rand.Uint64()))
				}
				lb := lobby.NewLobby(h.ctx, code, msg.Creator, msg.Outbox, opts)
				h.lobbies[code] = lb
				h.log.Info("lobby created", zap.String("code", code), zap.String("host", msg.Creator.ID), zap.Int("lobbies", len(h.lobbies)))
				msg.Reply <- CreateResult{Lobby: lb}

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case ListLobbies:
				out := make([]*lobby.Lobby, 0, len(h.lobbies))
				for _, lb := range h.lobbies {
					out = append(out, lb)
				}
				msg.Reply <- out

			case RemoveLobby:
				if h.lobbies[msg.Code] == msg.Lobby {
					delete(h.lobbies, msg.Code)
					h.log.Info("lobby removed", zap.String("code", msg.Code), zap.Int("lobbies", len(h.lobbies)))
				}

			case ShutdownHub:
				h.closeAll()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) freshCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		c, err := h.opts.NewCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.lobbies[c]; !taken {
			return c, nil
		}
		h.log.Debug("collision on code, regenerating", zap.String("code", c))
	}
	return "", ErrCodeGenerationExhausted
}

func (h *Hub) onEmpty(code string, lb *lobby.Lobby) {
	select {
	case h.inbox <- RemoveLobby{Code: code, Lobby: lb}:
	case <-h.done:
	}
}

func (h *Hub) closeAll() {
	for _, lb := range h.lobbies {
		lb.Close()
	}
	clear(h.lobbies)
}

// NormalizeCode upper-cases and trims a user-supplied lobby code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
