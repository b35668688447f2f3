package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olivmath/stealth-battleship-sub001/internal/auth"
	"github.com/olivmath/stealth-battleship-sub001/internal/domain"
	"github.com/olivmath/stealth-battleship-sub001/internal/repository"
	"github.com/olivmath/stealth-battleship-sub001/internal/service"
	"github.com/olivmath/stealth-battleship-sub001/internal/session"
)

// Handler bundles the dependencies of the REST surface.
type Handler struct {
	Verifier *auth.Verifier
	Registry *session.Registry
	DB       *pgxpool.Pool
}

func NewHandler(verifier *auth.Verifier, registry *session.Registry, db *pgxpool.Pool) *Handler {
	return &Handler{Verifier: verifier, Registry: registry, DB: db}
}

// Authenticate exchanges a signed handshake for a websocket token. The
// signed message is "publicKey:timestamp:nonce".
func (h *Handler) Authenticate(c *gin.Context) {
	var req struct {
		PublicKey string `json:"public_key"`
		Timestamp int64  `json:"timestamp"`
		Nonce     string `json:"nonce"`
		Signature string `json:"signature"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	if err := h.Verifier.VerifyAuth(req.PublicKey, req.Timestamp, req.Nonce, req.Signature); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	token, err := service.IssueToken(req.PublicKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// GetMatch returns the public view of a live or recently finished match.
// Board hashes are public commitments; proofs and reveals are not served.
func (h *Handler) GetMatch(c *gin.Context) {
	m, ok := h.Registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return
	}

	m.Lock()
	view := gin.H{
		"id":           m.ID,
		"status":       string(m.Status),
		"grid_size":    m.GridSize,
		"player1":      m.Player1.PublicKey,
		"current_turn": m.CurrentTurn,
		"turn_number":  m.TurnNumber,
		"attack_count": len(m.Attacks),
		"created_at":   m.CreatedAt,
	}
	if m.Player2 != nil {
		view["player2"] = m.Player2.PublicKey
	}
	if m.Status == domain.StatusFinished {
		view["winner"] = m.Winner
		view["end_reason"] = m.EndReason
	}
	m.Unlock()

	c.JSON(http.StatusOK, view)
}

// PlayerStats serves the persisted win/loss aggregate for an identity.
func (h *Handler) PlayerStats(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stats unavailable"})
		return
	}

	repo := repository.NewPlayerStatsRepository(h.DB)
	stats, err := repo.GetByKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"public_key":     stats.PublicKey,
		"wins":           stats.Wins,
		"losses":         stats.Losses,
		"matches_played": stats.MatchesPlayed,
	})
}

// Leaderboard serves the top players by wins.
func (h *Handler) Leaderboard(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "leaderboard unavailable"})
		return
	}

	repo := repository.NewPlayerStatsRepository(h.DB)
	entries, err := repo.Leaderboard(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	var out []gin.H
	for _, e := range entries {
		out = append(out, gin.H{
			"public_key":     e.PublicKey,
			"wins":           e.Wins,
			"losses":         e.Losses,
			"matches_played": e.MatchesPlayed,
		})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": out})
}

// Healthz reports liveness and the registry size.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"matches": h.Registry.Count(),
	})
}
