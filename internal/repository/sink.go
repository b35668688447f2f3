package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
	"github.com/olivmath/stealth-battleship-sub001/internal/logger"
)

// Sink is the fire-and-forget persistence boundary. Callers never block a
// transition on a write; failures are logged and dropped.
// CountInvalidProofs is the one read: the alerting path uses it to tag
// repeat offenders, and a failed query just reads as zero.
type Sink interface {
	RecordMatchCreated(m *domain.Match)
	RecordAttack(matchID string, a *domain.Attack)
	RecordMatchEnded(m *domain.Match)
	RecordPlayerOutcome(publicKey string, won bool)
	RecordProofLog(log *ProofLog)
	CountInvalidProofs(publicKey string) int
}

// PgSink writes through the pgx repositories with a bounded per-write
// timeout so a slow database cannot pile up goroutines forever.
type PgSink struct {
	matches *MatchRepository
	proofs  *ProofLogRepository
	stats   *PlayerStatsRepository
	timeout time.Duration
}

func NewPgSink(db *pgxpool.Pool) *PgSink {
	return &PgSink{
		matches: NewMatchRepository(db),
		proofs:  NewProofLogRepository(db),
		stats:   NewPlayerStatsRepository(db),
		timeout: 5 * time.Second,
	}
}

func (s *PgSink) RecordMatchCreated(m *domain.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.matches.CreateMatch(ctx, m); err != nil {
		logger.Error("persist match created failed", "match_id", m.ID, "error", err)
	}
}

func (s *PgSink) RecordAttack(matchID string, a *domain.Attack) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.matches.CreateAttack(ctx, matchID, a); err != nil {
		logger.Error("persist attack failed", "match_id", matchID, "error", err)
	}
}

func (s *PgSink) RecordMatchEnded(m *domain.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.matches.EndMatch(ctx, m); err != nil {
		logger.Error("persist match ended failed", "match_id", m.ID, "error", err)
	}
}

func (s *PgSink) RecordPlayerOutcome(publicKey string, won bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.stats.RecordOutcome(ctx, publicKey, won); err != nil {
		logger.Error("persist player outcome failed", "player", publicKey, "error", err)
	}
}

func (s *PgSink) RecordProofLog(log *ProofLog) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.proofs.Create(ctx, log); err != nil {
		logger.Error("persist proof log failed", "match_id", log.MatchID, "error", err)
	}
}

func (s *PgSink) CountInvalidProofs(publicKey string) int {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	count, err := s.proofs.CountInvalidByPlayer(ctx, publicKey)
	if err != nil {
		logger.Error("count invalid proofs failed", "player", publicKey, "error", err)
		return 0
	}
	return count
}

// NopSink satisfies Sink when no database is configured (local dev).
type NopSink struct{}

func (NopSink) RecordMatchCreated(*domain.Match)    {}
func (NopSink) RecordAttack(string, *domain.Attack) {}
func (NopSink) RecordMatchEnded(*domain.Match)      {}
func (NopSink) RecordPlayerOutcome(string, bool)    {}
func (NopSink) RecordProofLog(*ProofLog)            {}
func (NopSink) CountInvalidProofs(string) int       { return 0 }
