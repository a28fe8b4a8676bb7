// Package stats records finished rounds so players can see how often they
// play and win. Recording is best effort: a failing store never affects a
// running game.
package stats

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/loteria-backend/internal/lobby"
)

type Summary struct {
	PlayerID     string    `json:"player_id"`
	GamesPlayed  int64     `json:"games_played"`
	GamesWon     int64     `json:"games_won"`
	LastPlayedAt time.Time `json:"last_played_at,omitempty"`
}

type Store interface {
	RecordOutcome(ctx context.Context, o lobby.Outcome) error
	PlayerStats(ctx context.Context, playerID string) (Summary, error)
	Close() error
}

type NopStore struct{}

func (NopStore) RecordOutcome(context.Context, lobby.Outcome) error { return nil }

func (NopStore) PlayerStats(_ context.Context, playerID string) (Summary, error) {
	return Summary{PlayerID: playerID}, nil
}

func (NopStore) Close() error { return nil }

const DefaultRecordTimeout = 5 * time.Second

// Notifier feeds lobby outcomes into a Store. Notify matches
// lobby.Options.OnOutcome.
type Notifier struct {
	store   Store
	timeout time.Duration
	log     *zap.Logger
	mu      sync.Mutex // guards closed and wg.Add against Close
	closed  bool
	wg      sync.WaitGroup
}

func NewNotifier(store Store, timeout time.Duration, log *zap.Logger) *Notifier {
	if timeout <= 0 {
		timeout = DefaultRecordTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{store: store, timeout: timeout, log: log}
}

func (n *Notifier) Notify(o lobby.Outcome) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.log.Warn("outcome dropped after close", zap.String("code", o.Code), zap.Int("round", o.Round))
		return
	}
	n.wg.Add(1)
	n.mu.Unlock()
	defer n.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if err := n.store.RecordOutcome(ctx, o); err != nil {
		n.log.Warn("record outcome failed",
			zap.String("code", o.Code),
			zap.Int("round", o.Round),
			zap.String("winner", o.WinnerID),
			zap.Error(err))
		return
	}
	n.log.Debug("outcome recorded", zap.String("code", o.Code), zap.Int("round", o.Round))
}

// Close waits for in-flight records and closes the store.
func (n *Notifier) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.wg.Wait()
	return n.store.Close()
}
