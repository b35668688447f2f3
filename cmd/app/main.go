package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olivmath/stealth-battleship-sub001/internal/aggregate"
	"github.com/olivmath/stealth-battleship-sub001/internal/auth"
	"github.com/olivmath/stealth-battleship-sub001/internal/bot"
	"github.com/olivmath/stealth-battleship-sub001/internal/chain"
	"github.com/olivmath/stealth-battleship-sub001/internal/config"
	"github.com/olivmath/stealth-battleship-sub001/internal/db"
	httpServer "github.com/olivmath/stealth-battleship-sub001/internal/http"
	"github.com/olivmath/stealth-battleship-sub001/internal/logger"
	"github.com/olivmath/stealth-battleship-sub001/internal/matchmaking"
	"github.com/olivmath/stealth-battleship-sub001/internal/middleware"
	"github.com/olivmath/stealth-battleship-sub001/internal/repository"
	"github.com/olivmath/stealth-battleship-sub001/internal/service"
	"github.com/olivmath/stealth-battleship-sub001/internal/session"
	"github.com/olivmath/stealth-battleship-sub001/internal/ws"
	"github.com/olivmath/stealth-battleship-sub001/internal/zk"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg := config.Load()

	jsonLogs := os.Getenv("LOG_FORMAT") == "json"
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Init(logLevel, jsonLogs)
	log := logger.Get()

	service.InitJWT(cfg.JWTSecret)

	var dbPool *pgxpool.Pool
	var sink repository.Sink = repository.NopSink{}
	if cfg.DatabaseURL != "" {
		dbPool = db.Connect(cfg.DatabaseURL)
		defer dbPool.Close()
		sink = repository.NewPgSink(dbPool)
	} else {
		log.Warn("DATABASE_URL not set, persistence disabled")
	}

	verifier, err := zk.NewGnarkVerifier(cfg.CircuitKeysDir)
	if err != nil {
		logger.Fatal("load verifying keys failed", "dir", cfg.CircuitKeysDir, "error", err)
	}

	var anchor chain.Anchor = chain.NopAnchor{}
	if cfg.TonWalletMnemonic != "" && cfg.AnchorAddress != "" {
		tonAnchor, err := chain.NewTonAnchor(cfg.TonWalletMnemonic, cfg.TonNetwork, cfg.AnchorAddress)
		if err != nil {
			log.Error("TON anchor init failed, anchoring disabled", "error", err)
		} else {
			anchor = tonAnchor
			log.Info("TON anchor initialized", "network", cfg.TonNetwork)
		}
	} else {
		log.Warn("TON anchoring disabled: wallet mnemonic or anchor address not set")
	}

	var alerter bot.Alerter = bot.NopAlerter{}
	if cfg.AdminBotToken != "" && len(cfg.AdminTelegramIDs) > 0 {
		alertBot, err := bot.NewAlertBot(cfg.AdminBotToken, cfg.AdminTelegramIDs)
		if err != nil {
			log.Error("alert bot init failed", "error", err)
		} else {
			alerter = alertBot
			log.Info("alert bot started", "admin_ids", cfg.AdminTelegramIDs)
		}
	}

	registry := session.NewRegistry()
	authVerifier := auth.NewVerifier()
	hub := ws.NewHub()

	matchService := service.NewMatchService(service.Config{
		TurnTimeout:     cfg.TurnTimeout,
		DefenderTimeout: cfg.DefenderTimeout,
		DisconnectGrace: cfg.DisconnectGrace,
	}, service.Deps{
		Registry:   registry,
		Queue:      matchmaking.NewQueue(registry),
		Gate:       zk.NewGate(verifier),
		Verifier:   authVerifier,
		Prover:     aggregate.NewHTTPProver(cfg.ProverURL),
		Sink:       sink,
		Anchor:     anchor,
		Alerter:    alerter,
		Limiter:    middleware.NewAttackLimiter(cfg.RedisAddr, time.Second),
		Dispatcher: hub,
	})
	hub.SetHandler(matchService)
	matchService.StartSweeper(10*time.Minute, time.Hour)

	r := gin.Default()

	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, authVerifier, registry, dbPool, hub)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		log.Info("server started", "port", cfg.AppPort, "version", Version,
			"turn_timeout", cfg.TurnTimeout, "defender_timeout", cfg.DefenderTimeout)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
