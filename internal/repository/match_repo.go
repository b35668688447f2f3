package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
)

// MatchRepository persists match lifecycle records and the attack log.
type MatchRepository struct {
	db *pgxpool.Pool
}

func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateMatch inserts the row when both players are paired.
func (r *MatchRepository) CreateMatch(ctx context.Context, m *domain.Match) error {
	player2 := ""
	if m.Player2 != nil {
		player2 = m.Player2.PublicKey
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO matches (id, grid_size, player1_key, player2_key, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.GridSize, m.Player1.PublicKey, player2, string(m.Status), m.CreatedAt)
	return err
}

// EndMatch stamps the terminal fields once.
func (r *MatchRepository) EndMatch(ctx context.Context, m *domain.Match) error {
	_, err := r.db.Exec(ctx, `
		UPDATE matches
		SET status = $2, winner = $3, end_reason = $4, turn_count = $5, ended_at = NOW()
		WHERE id = $1 AND status != 'finished'
	`, m.ID, string(domain.StatusFinished), m.Winner, m.EndReason, m.TurnNumber)
	return err
}

// CreateAttack appends one confirmed attack to the log table.
func (r *MatchRepository) CreateAttack(ctx context.Context, matchID string, a *domain.Attack) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO attacks (match_id, attacker_key, row_idx, col_idx, result, turn_number, attacked_at)
		VALUES ($1, $2, $3, $4, $5, $6, to_timestamp($7 / 1000.0))
	`, matchID, a.Attacker, a.Row, a.Col, string(a.Result), a.TurnNumber, a.Timestamp)
	return err
}
