package stats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DoyleJ11/loteria-backend/internal/lobby"
)

const (
	fieldPlayed     = "games_played"
	fieldWon        = "games_won"
	fieldLastPlayed = "last_played_at"
)

// RedisStore keeps one hash per player under "<prefix>player:<id>" and a
// capped list of recent rounds under "<prefix>rounds".
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	maxRounds int64
}

func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, "loteria:"), nil
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, maxRounds: 1000}
}

func (s *RedisStore) playerKey(id string) string { return s.prefix + "player:" + id }

func (s *RedisStore) RecordOutcome(ctx context.Context, o lobby.Outcome) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range o.Players {
			key := s.playerKey(id)
			pipe.HIncrBy(ctx, key, fieldPlayed, 1)
			if id == o.WinnerID {
				pipe.HIncrBy(ctx, key, fieldWon, 1)
			}
			pipe.HSet(ctx, key, fieldLastPlayed, o.FinishedAt.Unix())
		}
		entry := fmt.Sprintf("%s:%d:%s:%s", o.Code, o.Round, o.WinnerID, o.Win.Pattern)
		pipe.LPush(ctx, s.prefix+"rounds", entry)
		pipe.LTrim(ctx, s.prefix+"rounds", 0, s.maxRounds-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

func (s *RedisStore) PlayerStats(ctx context.Context, playerID string) (Summary, error) {
	vals, err := s.client.HGetAll(ctx, s.playerKey(playerID)).Result()
	if err != nil {
		return Summary{}, fmt.Errorf("load stats: %w", err)
	}
	sum := Summary{PlayerID: playerID}
	sum.GamesPlayed, _ = strconv.ParseInt(vals[fieldPlayed], 10, 64)
	sum.GamesWon, _ = strconv.ParseInt(vals[fieldWon], 10, 64)
	if ts, err := strconv.ParseInt(vals[fieldLastPlayed], 10, 64); err == nil {
		sum.LastPlayedAt = time.Unix(ts, 0).UTC()
	}
	return sum, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
