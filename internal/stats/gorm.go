package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/loteria-backend/internal/lobby"
)

type PlayerStat struct {
	PlayerID     string `gorm:"primaryKey;size:64"`
	GamesPlayed  int64  `gorm:"not null;default:0"`
	GamesWon     int64  `gorm:"not null;default:0"`
	LastPlayedAt time.Time
	UpdatedAt    time.Time
}

type RoundRecord struct {
	ID           uint   `gorm:"primaryKey"`
	LobbyCode    string `gorm:"size:6;index"`
	Round        int
	WinnerID     string `gorm:"size:64;index"`
	Pattern      string `gorm:"size:16"`
	PatternIndex int
	Players      int
	FinishedAt   time.Time
}

type GormStore struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore migrates the stats tables on db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&PlayerStat{}, &RoundRecord{}); err != nil {
		return nil, fmt.Errorf("migrate stats: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) RecordOutcome(ctx context.Context, o lobby.Outcome) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := RoundRecord{
			LobbyCode:    o.Code,
			Round:        o.Round,
			WinnerID:     o.WinnerID,
			Pattern:      string(o.Win.Pattern),
			PatternIndex: o.Win.Index,
			Players:      len(o.Players),
			FinishedAt:   o.FinishedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("insert round: %w", err)
		}

		for _, id := range o.Players {
			won := int64(0)
			if id == o.WinnerID {
				won = 1
			}
			row := PlayerStat{PlayerID: id, GamesPlayed: 1, GamesWon: won, LastPlayedAt: o.FinishedAt}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "player_id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"games_played":   gorm.Expr("player_stats.games_played + 1"),
					"games_won":      gorm.Expr("player_stats.games_won + ?", won),
					"last_played_at": o.FinishedAt,
					"updated_at":     time.Now(),
				}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert player %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *GormStore) PlayerStats(ctx context.Context, playerID string) (Summary, error) {
	var row PlayerStat
	err := s.db.WithContext(ctx).First(&row, "player_id = ?", playerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Summary{PlayerID: playerID}, nil
	}
	if err != nil {
		return Summary{}, fmt.Errorf("load stats: %w", err)
	}
	return Summary{
		PlayerID:     row.PlayerID,
		GamesPlayed:  row.GamesPlayed,
		GamesWon:     row.GamesWon,
		LastPlayedAt: row.LastPlayedAt,
	}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
