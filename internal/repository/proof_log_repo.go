package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ProofLog is one verification audit entry: every proof the server checks
// leaves a row, valid or not.
type ProofLog struct {
	MatchID   string
	PlayerKey string
	Circuit   string
	ProofSize int
	ElapsedMs int64
	Valid     bool
}

type ProofLogRepository struct {
	db *pgxpool.Pool
}

func NewProofLogRepository(db *pgxpool.Pool) *ProofLogRepository {
	return &ProofLogRepository{db: db}
}

func (r *ProofLogRepository) Create(ctx context.Context, log *ProofLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO proof_logs (match_id, player_key, circuit, proof_size, elapsed_ms, valid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, log.MatchID, log.PlayerKey, log.Circuit, log.ProofSize, log.ElapsedMs, log.Valid)
	return err
}

// CountInvalidByPlayer is used by the ops alerting path to spot repeat
// offenders.
func (r *ProofLogRepository) CountInvalidByPlayer(ctx context.Context, playerKey string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM proof_logs WHERE player_key = $1 AND valid = FALSE
	`, playerKey).Scan(&count)
	return count, err
}
