package lobby

import (
	"context"
	"maps"
	"math/rand/v2"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/loteria-backend/internal/apperr"
	"github.com/DoyleJ11/loteria-backend/internal/deck"
	"github.com/DoyleJ11/loteria-backend/internal/engine"
)

var ErrLobbyNotFound = apperr.New(apperr.KindNotFound, "lobby-not-found", "lobby not found")
var ErrLobbyAlreadyStarted = apperr.New(apperr.KindStateConflict, "lobby-already-started", "the round has already started")
var ErrNotInLobby = apperr.New(apperr.KindAuthorization, "not-in-lobby", "player is not in this lobby")

type Msg interface{ isLobbyMsg() }

// Join adds Player (or reattaches an existing member). Outbox, when set,
// receives every Notice from now on.
type Join struct {
	Player Player
	Outbox chan Notice
	Reply  chan Result
}

func (Join) isLobbyMsg() {}

type Leave struct {
	PlayerID string
	Reply    chan Result
}

func (Leave) isLobbyMsg() {}

// Disconnect reports that the connection owning Outbox went away. The player
// keeps their seat for the reconnection grace period.
type Disconnect struct {
	PlayerID string
	Outbox   chan Notice
}

func (Disconnect) isLobbyMsg() {}

type FromClient struct {
	Cmd   engine.Command
	Reply chan Result
}

func (FromClient) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type graceExpired struct {
	PlayerID string
	Gen      int
}

func (graceExpired) isLobbyMsg() {}

type Result struct {
	View   View
	Events []engine.Event
	Err    error
}

type NoticeType string

const (
	NoticeLobbyUpdated NoticeType = "lobby-updated"
	NoticeGameStarted  NoticeType = "game-started"
	NoticeCardCalled   NoticeType = "card-called"
	NoticeWinConfirmed NoticeType = "win-confirmed"
	NoticeRoundReset   NoticeType = "round-reset"
	NoticeLobbyClosed  NoticeType = "lobby-closed"
)

// Notice is what subscribers receive after every accepted change.
type Notice struct {
	Type     NoticeType
	Version  int
	View     View
	Card     *deck.Card
	WinnerID string
	Win      *engine.Match
}

type View struct {
	Code       string       `json:"code"`
	HostID     string       `json:"host_id"`
	Players    []Player     `json:"players"`
	CreatedAt  time.Time    `json:"created_at"`
	Version    int          `json:"version"`
	NumClients int          `json:"num_clients"`
	Session    engine.State `json:"session"`
}

// Outcome is emitted once per round that ends with a confirmed winner.
type Outcome struct {
	Code       string
	Round      int
	WinnerID   string
	Win        engine.Match
	Players    []string
	FinishedAt time.Time
}

type Options struct {
	MinPlayers     int
	ReconnectGrace time.Duration
	OnEmpty        func(code string, l *Lobby)
	OnOutcome      func(Outcome)
	Logger         *zap.Logger
	// Rand is owned by the lobby's goroutine and must not be shared
	// between lobbies. The hub derives a fresh one per lobby.
	Rand           *rand.Rand
	Now            func() time.Time
}

type graceTimer struct {
	gen   int
	timer *time.Timer
}

type Lobby struct {
	code      string
	createdAt time.Time
	inbox     chan Msg
	roster    Roster
	state     engine.State
	version   int
	clients   map[string]chan Notice
	grace     map[string]graceTimer
	graceGen  int
	opts      Options
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewLobby starts the lobby's loop with creator as its first member and
// host. A creator without an outbox is treated as not yet connected, so an
// abandoned lobby is reaped after the grace period.
func NewLobby(parent context.Context, code string, creator Player, outbox chan Notice, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	l := &Lobby{
		code:      code,
		createdAt: opts.Now(),
		inbox:     make(chan Msg, 64),
		state:     engine.NewState(engine.Rules{MinPlayers: opts.MinPlayers}),
		clients:   make(map[string]chan Notice),
		grace:     make(map[string]graceTimer),
		opts:      opts,
		log:       opts.Logger.With(zap.String("code", code)),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	if creator.JoinedAt.IsZero() {
		creator.JoinedAt = l.createdAt
	}
	l.roster = NewRoster(creator)
	if outbox != nil {
		l.clients[creator.ID] = outbox
	} else {
		l.roster = l.roster.SetConnected(creator.ID, false)
		l.armGrace(creator.ID)
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			if stop := l.handle(m); stop {
				l.shutdown()
				return
			}
		}
	}
}

// handle applies one message. Every change is computed on copies and only
// committed once it succeeds, so a panic leaves the lobby as it was.
func (l *Lobby) handle(m Msg) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("lobby operation panicked", zap.Any("panic", r), zap.Stack("stack"))
			replyTo(m, Result{Err: apperr.ErrInternal})
			stop = false
		}
	}()

	switch msg := m.(type) {
	case Join:
		p := msg.Player
		existing := l.roster.Has(p.ID)
		if !existing && l.state.Phase != engine.PhaseWaiting {
			replyTo(msg, Result{Err: ErrLobbyAlreadyStarted})
			return false
		}
		if p.JoinedAt.IsZero() {
			p.JoinedAt = l.opts.Now()
		}

		l.roster, _ = l.roster.Join(p)
		l.stopGrace(p.ID)
		if msg.Outbox != nil {
			l.subscribe(p.ID, msg.Outbox)
		}
		l.version++
		view := l.view()
		replyTo(msg, Result{View: view})
		l.log.Info("player joined", zap.String("player", p.ID), zap.Bool("rejoin", existing), zap.Int("players", len(view.Players)))
		l.broadcast(Notice{Type: NoticeLobbyUpdated})

	case Leave:
		if !l.roster.Has(msg.PlayerID) {
			replyTo(msg, Result{Err: ErrNotInLobby})
			return false
		}
		return l.removePlayer(msg.PlayerID, msg.Reply)

	case Disconnect:
		cur, ok := l.clients[msg.PlayerID]
		if !ok || cur != msg.Outbox {
			// Stale connection: the player already left or reattached elsewhere.
			return false
		}
		delete(l.clients, msg.PlayerID)
		close(cur)

		if l.opts.ReconnectGrace <= 0 {
			return l.removePlayer(msg.PlayerID, nil)
		}
		l.roster = l.roster.SetConnected(msg.PlayerID, false)
		l.armGrace(msg.PlayerID)
		l.version++
		l.log.Info("player disconnected", zap.String("player", msg.PlayerID), zap.Duration("grace", l.opts.ReconnectGrace))
		l.broadcast(Notice{Type: NoticeLobbyUpdated})

	case graceExpired:
		g, ok := l.grace[msg.PlayerID]
		if !ok || g.gen != msg.Gen {
			return false
		}
		delete(l.grace, msg.PlayerID)
		i := l.roster.Index(msg.PlayerID)
		if i < 0 || l.roster.Players[i].Connected {
			return false
		}
		l.log.Info("reconnection grace expired", zap.String("player", msg.PlayerID))
		return l.removePlayer(msg.PlayerID, nil)

	case FromClient:
		cmd := msg.Cmd
		if !l.roster.Has(cmd.RequesterID) {
			replyTo(msg, Result{Err: ErrNotInLobby})
			return false
		}
		cmd.HostID = l.roster.HostID
		cmd.Players = l.roster.IDs()
		if cmd.Rand == nil {
			cmd.Rand = l.opts.Rand
		}

		events, next, err := engine.Apply(l.state, cmd)
		if err != nil {
			replyTo(msg, Result{Err: err})
			return false
		}

		l.state = next
		l.version++
		replyTo(msg, Result{View: l.view(), Events: events})
		l.publish(events)

	case GetState:
		msg.Reply <- l.view()

	case Shutdown:
		return true
	}
	return false
}

func (l *Lobby) removePlayer(id string, reply chan Result) (stop bool) {
	var hostChanged bool
	l.roster, _, hostChanged = l.roster.Leave(id)
	l.stopGrace(id)
	l.version++
	empty := len(l.roster.Players) == 0
	if ch, ok := l.clients[id]; ok {
		if empty {
			// The leaver is the last one to hear about the lobby.
			select {
			case ch <- Notice{Type: NoticeLobbyClosed, Version: l.version, View: l.view()}:
			default:
			}
		}
		close(ch)
		delete(l.clients, id)
	}

	view := l.view()
	if reply != nil {
		select {
		case reply <- Result{View: view}:
		default:
		}
	}
	l.log.Info("player left", zap.String("player", id), zap.Bool("host_migrated", hostChanged), zap.String("host", l.roster.HostID))

	if empty {
		if l.opts.OnEmpty != nil {
			go l.opts.OnEmpty(l.code, l)
		}
		l.log.Info("lobby emptied")
		return true
	}
	l.broadcast(Notice{Type: NoticeLobbyUpdated})
	return false
}

func (l *Lobby) publish(events []engine.Event) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtBoardsDealt:
			l.log.Info("round started", zap.Int("round", l.state.Round), zap.Int("boards", len(l.state.Boards)))
			l.broadcast(Notice{Type: NoticeGameStarted})

		case engine.EvtCardCalled:
			l.broadcast(Notice{Type: NoticeCardCalled, Card: ev.Card})

		case engine.EvtWinConfirmed:
			l.log.Info("win confirmed", zap.String("winner", ev.PlayerID), zap.String("pattern", string(ev.Match.Pattern)))
			l.broadcast(Notice{Type: NoticeWinConfirmed, WinnerID: ev.PlayerID, Win: ev.Match})
			l.emitOutcome(ev)

		case engine.EvtRoundReset:
			l.broadcast(Notice{Type: NoticeRoundReset})
		}
	}
}

func (l *Lobby) emitOutcome(ev engine.Event) {
	if l.opts.OnOutcome == nil {
		return
	}
	players := slices.Sorted(maps.Keys(l.state.Boards))
	o := Outcome{
		Code:       l.code,
		Round:      l.state.Round,
		WinnerID:   ev.PlayerID,
		Win:        *ev.Match,
		Players:    players,
		FinishedAt: l.opts.Now(),
	}
	go l.opts.OnOutcome(o)
}

func (l *Lobby) subscribe(id string, out chan Notice) {
	if old, ok := l.clients[id]; ok && old != out {
		// A newer connection for the same player replaces the old one.
		close(old)
	}
	l.clients[id] = out
}

func (l *Lobby) broadcast(n Notice) {
	n.Version = l.version
	n.View = l.view()

	var dropped []string
	for id, ch := range l.clients {
		select {
		case ch <- n:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
			dropped = append(dropped, id)
		}
	}

	for _, id := range dropped {
		l.log.Warn("dropping slow client", zap.String("player", id))
		l.roster = l.roster.SetConnected(id, false)
		l.armGrace(id)
	}
}

func (l *Lobby) armGrace(id string) {
	l.stopGrace(id)
	l.graceGen++
	gen := l.graceGen
	t := time.AfterFunc(max(l.opts.ReconnectGrace, 0), func() {
		select {
		case l.inbox <- graceExpired{PlayerID: id, Gen: gen}:
		case <-l.done:
		}
	})
	l.grace[id] = graceTimer{gen: gen, timer: t}
}

func (l *Lobby) stopGrace(id string) {
	if g, ok := l.grace[id]; ok {
		g.timer.Stop()
		delete(l.grace, id)
	}
}

func (l *Lobby) view() View {
	return View{
		Code:       l.code,
		HostID:     l.roster.HostID,
		Players:    l.roster.Players,
		CreatedAt:  l.createdAt,
		Version:    l.version,
		NumClients: len(l.clients),
		Session:    l.state,
	}
}

func (l *Lobby) shutdown() {
	closing := Notice{Type: NoticeLobbyClosed, Version: l.version, View: l.view()}
	for id, ch := range l.clients {
		select {
		case ch <- closing:
		default:
		}
		close(ch) // Tell client no more notices
		delete(l.clients, id)
	}
	for id := range l.grace {
		l.stopGrace(id)
	}
	l.cancel()
}

func replyTo(m Msg, res Result) {
	var ch chan Result
	switch msg := m.(type) {
	case Join:
		ch = msg.Reply
	case Leave:
		ch = msg.Reply
	case FromClient:
		ch = msg.Reply
	}
	if ch == nil {
		return
	}
	select {
	case ch <- res:
	default:
	}
}
