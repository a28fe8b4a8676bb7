package lobby

import (
	"context"

	"github.com/DoyleJ11/loteria-backend/internal/engine"
)

// Expose the inbox so tests or the ws layer can send messages directly.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Code() string { return l.code }

// Done is closed once the lobby's loop has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Close stops the loop without going through the inbox, so it never blocks.
func (l *Lobby) Close() { l.cancel() }

func (l *Lobby) Join(ctx context.Context, p Player, outbox chan Notice) (View, error) {
	res, err := l.request(ctx, func(reply chan Result) Msg {
		return Join{Player: p, Outbox: outbox, Reply: reply}
	})
	return res.View, err
}

func (l *Lobby) Leave(ctx context.Context, playerID string) (View, error) {
	res, err := l.request(ctx, func(reply chan Result) Msg {
		return Leave{PlayerID: playerID, Reply: reply}
	})
	return res.View, err
}

// Disconnect is fire-and-forget: the connection is already gone.
func (l *Lobby) Disconnect(playerID string, outbox chan Notice) {
	select {
	case l.inbox <- Disconnect{PlayerID: playerID, Outbox: outbox}:
	case <-l.done:
	}
}

func (l *Lobby) StartGame(ctx context.Context, requesterID string) (Result, error) {
	return l.Do(ctx, engine.CmdStartGame, requesterID)
}

func (l *Lobby) CallNextCard(ctx context.Context, requesterID string) (Result, error) {
	return l.Do(ctx, engine.CmdCallNextCard, requesterID)
}

func (l *Lobby) ClaimWin(ctx context.Context, playerID string) (Result, error) {
	return l.Do(ctx, engine.CmdClaimWin, playerID)
}

func (l *Lobby) ResetRound(ctx context.Context, requesterID string) (Result, error) {
	return l.Do(ctx, engine.CmdResetRound, requesterID)
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case l.inbox <- GetState{Reply: reply}:
	case <-l.done:
		return View{}, ErrLobbyNotFound
	case <-ctx.Done():
		return View{}, ctx.Err()
	}

	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return View{}, ErrLobbyNotFound
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Do runs a session command on behalf of requesterID.
func (l *Lobby) Do(ctx context.Context, t engine.CommandType, requesterID string) (Result, error) {
	return l.request(ctx, func(reply chan Result) Msg {
		return FromClient{Cmd: engine.Command{Type: t, RequesterID: requesterID}, Reply: reply}
	})
}

func (l *Lobby) request(ctx context.Context, build func(chan Result) Msg) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case l.inbox <- build(reply):
	case <-l.done:
		return Result{}, ErrLobbyNotFound
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res, res.Err
	case <-l.done:
		// The loop may have answered right before exiting.
		select {
		case res := <-reply:
			return res, res.Err
		default:
			return Result{}, ErrLobbyNotFound
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
