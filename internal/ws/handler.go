package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/loteria-backend/internal/apperr"
	"github.com/DoyleJ11/loteria-backend/internal/engine"
	"github.com/DoyleJ11/loteria-backend/internal/hub"
	"github.com/DoyleJ11/loteria-backend/internal/identity"
	"github.com/DoyleJ11/loteria-backend/internal/lobby"
	"github.com/DoyleJ11/loteria-backend/internal/types"
)

type Options struct {
	Resolver       identity.Resolver
	OriginPatterns []string
	Logger         *zap.Logger
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	OpTimeout      time.Duration
	SendBuffer     int
}

func (o *Options) defaults() {
	if o.Resolver == nil {
		o.Resolver = identity.GuestResolver{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = 5 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	o.OriginPatterns = normalizeOrigins(o.OriginPatterns)
}

// Handler upgrades the request to a WebSocket. The player is resolved from
// the request before the upgrade; a code query parameter joins that lobby
// right away.
func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	opts.defaults()
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := opts.Resolver.Resolve(r)
		if err != nil {
			status := http.StatusUnauthorized
			if apperr.KindOf(err) == apperr.KindValidation {
				status = http.StatusBadRequest
			}
			http.Error(w, apperr.Public(err), status)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			return
		}
		conn.SetReadLimit(4096)

		s := newSession(r.Context(), h, conn, who, opts)
		s.log.Info("client connected", zap.Bool("guest", who.Guest))
		if code := r.URL.Query().Get("code"); code != "" {
			s.dispatch(types.ClientMessage{Type: types.JoinLobby, LobbyCode: code})
		}
		s.run()
	}
}

type session struct {
	hub  *hub.Hub
	conn *websocket.Conn
	who  identity.Identity
	opts Options
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	send   chan types.ServerMessage

	mu     sync.Mutex
	lb     *lobby.Lobby
	outbox chan lobby.Notice
}

func newSession(parent context.Context, h *hub.Hub, conn *websocket.Conn, who identity.Identity, opts Options) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		hub:    h,
		conn:   conn,
		who:    who,
		opts:   opts,
		log:    opts.Logger.With(zap.String("conn", uuid.NewString()), zap.String("player", who.PlayerID)),
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan types.ServerMessage, opts.SendBuffer),
	}
}

func (s *session) run() {
	defer s.conn.Close(websocket.StatusNormalClosure, "bye")
	defer s.cancel()

	go s.writeLoop()
	go s.pingLoop()

	// Reader loop
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if s.ctx.Err() == nil {
					s.log.Debug("read failed", zap.Error(err))
				}
			}
			break
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			s.reply(types.FromError("", "", apperr.Invalid("malformed message")))
			continue
		}
		s.dispatch(cm)
	}

	if lb, out := s.detach(); lb != nil {
		lb.Disconnect(s.who.PlayerID, out)
	}
	s.log.Info("client disconnected")
}

func (s *session) writeLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.send:
			ctx, cancel := context.WithTimeout(s.ctx, s.opts.WriteTimeout)
			err := wsjson.Write(ctx, s.conn, msg)
			cancel()
			if err != nil {
				s.log.Debug("write failed", zap.Error(err))
				s.cancel()
				return
			}
		}
	}
}

func (s *session) pingLoop() {
	t := time.NewTicker(s.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(s.ctx, s.opts.PingInterval)
			err := s.conn.Ping(ctx)
			cancel()
			if err != nil {
				s.cancel()
				return
			}
		}
	}
}

func (s *session) reply(msg types.ServerMessage) {
	select {
	case s.send <- msg:
	case <-s.ctx.Done():
	}
}

func (s *session) dispatch(cm types.ClientMessage) {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.OpTimeout)
	defer cancel()

	var err error
	switch cm.Type {
	case types.CreateLobby:
		err = s.create(ctx, cm)
	case types.JoinLobby:
		err = s.join(ctx, cm)
	case types.LeaveLobby:
		err = s.leave(ctx)
	default:
		t, ok := toEngineCommand(cm)
		if !ok {
			err = apperr.Invalid("unknown message type %q", cm.Type)
			break
		}
		lb := s.current()
		if lb == nil || (cm.LobbyCode != "" && hub.NormalizeCode(cm.LobbyCode) != lb.Code()) {
			err = lobby.ErrNotInLobby
			break
		}
		// Accepted commands come back to everyone, this connection included,
		// through the lobby broadcast.
		_, err = lb.Do(ctx, t, s.who.PlayerID)
	}

	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal && !errors.Is(err, apperr.ErrInternal) {
			s.log.Error("request failed", zap.String("type", cm.Type), zap.Error(err))
		}
		s.reply(types.FromError(cm.Type, s.lobbyCode(cm), err))
	}
}

func toEngineCommand(m types.ClientMessage) (engine.CommandType, bool) {
	switch m.Type {
	case types.StartGame:
		return engine.CmdStartGame, true
	case types.CallNextCard:
		return engine.CmdCallNextCard, true
	case types.ClaimWin:
		return engine.CmdClaimWin, true
	case types.ResetRound:
		return engine.CmdResetRound, true
	default:
		return "", false
	}
}

func (s *session) player(name string) (lobby.Player, error) {
	who, err := s.who.WithName(name)
	if err != nil {
		return lobby.Player{}, err
	}
	return lobby.Player{ID: who.PlayerID, DisplayName: who.DisplayName, Email: who.Email}, nil
}

func (s *session) create(ctx context.Context, cm types.ClientMessage) error {
	p, err := s.player(cm.PlayerName)
	if err != nil {
		return err
	}

	out := make(chan lobby.Notice, s.opts.SendBuffer)
	lb, err := s.hub.Create(ctx, p, out)
	if err != nil {
		return err
	}
	view, err := lb.View(ctx)
	if err != nil {
		_, _ = lb.Leave(ctx, p.ID)
		return err
	}

	s.leavePrevious(ctx)
	s.reply(types.ServerMessage{Type: types.LobbyCreated, Version: view.Version, LobbyCode: view.Code, PlayerID: p.ID, Lobby: &view})
	s.attach(lb, out)
	s.log.Info("lobby created", zap.String("code", lb.Code()))
	return nil
}

func (s *session) join(ctx context.Context, cm types.ClientMessage) error {
	p, err := s.player(cm.PlayerName)
	if err != nil {
		return err
	}
	code := hub.NormalizeCode(cm.LobbyCode)

	// Joining the lobby we are already in refreshes our seat on the same
	// subscription.
	if cur := s.current(); cur != nil && cur.Code() == code {
		s.mu.Lock()
		out := s.outbox
		s.mu.Unlock()
		_, err := cur.Join(ctx, p, out)
		return err
	}

	lb, err := s.hub.Lookup(ctx, code)
	if err != nil {
		return err
	}

	// The current seat is only given up once the new lobby has taken us.
	out := make(chan lobby.Notice, s.opts.SendBuffer)
	if _, err := lb.Join(ctx, p, out); err != nil {
		return err
	}
	s.leavePrevious(ctx)
	s.attach(lb, out)
	return nil
}

func (s *session) leavePrevious(ctx context.Context) {
	if err := s.leave(ctx); err != nil && !errors.Is(err, lobby.ErrNotInLobby) {
		s.log.Warn("leaving previous lobby failed", zap.Error(err))
	}
}

func (s *session) leave(ctx context.Context) error {
	lb, _ := s.detach()
	if lb == nil {
		return lobby.ErrNotInLobby
	}
	if _, err := lb.Leave(ctx, s.who.PlayerID); err != nil && !errors.Is(err, lobby.ErrLobbyNotFound) {
		return err
	}
	s.reply(types.ServerMessage{Type: types.LeftLobby, LobbyCode: lb.Code(), PlayerID: s.who.PlayerID})
	return nil
}

func (s *session) current() *lobby.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lb
}

func (s *session) lobbyCode(cm types.ClientMessage) string {
	if cm.LobbyCode != "" {
		return hub.NormalizeCode(cm.LobbyCode)
	}
	if lb := s.current(); lb != nil {
		return lb.Code()
	}
	return ""
}

func (s *session) attach(lb *lobby.Lobby, out chan lobby.Notice) {
	s.mu.Lock()
	s.lb, s.outbox = lb, out
	s.mu.Unlock()
	go s.pump(lb, out)
}

func (s *session) detach() (*lobby.Lobby, chan lobby.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lb, out := s.lb, s.outbox
	s.lb, s.outbox = nil, nil
	return lb, out
}

// pump forwards a lobby subscription to the socket until the lobby closes it.
// A subscription that ends while still attached, without a lobby-closed
// notice, means the lobby dropped us or another connection took our seat.
func (s *session) pump(lb *lobby.Lobby, out chan lobby.Notice) {
	closed := false
	for n := range out {
		if n.Type == lobby.NoticeLobbyClosed {
			closed = true
		}
		s.reply(types.FromNotice(n))
	}

	s.mu.Lock()
	stillAttached := s.outbox == out
	if stillAttached {
		s.lb, s.outbox = nil, nil
	}
	s.mu.Unlock()

	if stillAttached && !closed && s.ctx.Err() == nil {
		s.log.Warn("lobby subscription dropped", zap.String("code", lb.Code()))
		s.conn.Close(websocket.StatusTryAgainLater, "subscription dropped, reconnect")
	}
}

// normalizeOrigins strips schemes; origin patterns match against host[:port].
func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
