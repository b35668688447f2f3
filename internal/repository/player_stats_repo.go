package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlayerStats is the per-identity win/loss aggregate.
type PlayerStats struct {
	PublicKey     string
	Wins          int
	Losses        int
	MatchesPlayed int
	UpdatedAt     time.Time
}

type PlayerStatsRepository struct {
	db *pgxpool.Pool
}

func NewPlayerStatsRepository(db *pgxpool.Pool) *PlayerStatsRepository {
	return &PlayerStatsRepository{db: db}
}

// RecordOutcome upserts one finished match for the player.
func (r *PlayerStatsRepository) RecordOutcome(ctx context.Context, publicKey string, won bool) error {
	wins, losses := 0, 1
	if won {
		wins, losses = 1, 0
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO player_stats (public_key, wins, losses, matches_played, updated_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (public_key) DO UPDATE
		SET wins = player_stats.wins + $2,
		    losses = player_stats.losses + $3,
		    matches_played = player_stats.matches_played + 1,
		    updated_at = NOW()
	`, publicKey, wins, losses)
	return err
}

// GetByKey returns the aggregate for one identity, zeroed when absent.
func (r *PlayerStatsRepository) GetByKey(ctx context.Context, publicKey string) (*PlayerStats, error) {
	stats := &PlayerStats{PublicKey: publicKey}
	err := r.db.QueryRow(ctx, `
		SELECT wins, losses, matches_played, updated_at
		FROM player_stats
		WHERE public_key = $1
	`, publicKey).Scan(&stats.Wins, &stats.Losses, &stats.MatchesPlayed, &stats.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// Leaderboard returns the top players by wins.
func (r *PlayerStatsRepository) Leaderboard(ctx context.Context, limit int) ([]*PlayerStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT public_key, wins, losses, matches_played, updated_at
		FROM player_stats
		ORDER BY wins DESC, matches_played ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PlayerStats
	for rows.Next() {
		var s PlayerStats
		if err := rows.Scan(&s.PublicKey, &s.Wins, &s.Losses, &s.MatchesPlayed, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
