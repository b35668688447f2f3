package http

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olivmath/stealth-battleship-sub001/internal/auth"
	"github.com/olivmath/stealth-battleship-sub001/internal/http/handlers"
	"github.com/olivmath/stealth-battleship-sub001/internal/session"
	"github.com/olivmath/stealth-battleship-sub001/internal/ws"
)

// RegisterRoutes wires the REST surface, the metrics endpoint and the
// websocket upgrade.
func RegisterRoutes(r *gin.Engine, verifier *auth.Verifier, registry *session.Registry, db *pgxpool.Pool, hub *ws.Hub) {
	h := handlers.NewHandler(verifier, registry, db)

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", ws.HandleWS(hub))

	api := r.Group("/api")
	{
		api.POST("/auth", h.Authenticate)
		api.GET("/match/:id", h.GetMatch)
		api.GET("/players/:key/stats", h.PlayerStats)
		api.GET("/leaderboard", h.Leaderboard)
	}
}
