package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dorkfun/match-core/internal/api"
	"github.com/dorkfun/match-core/internal/cache"
	"github.com/dorkfun/match-core/internal/config"
	"github.com/dorkfun/match-core/internal/gmc"
	"github.com/dorkfun/match-core/internal/gmc/connectfour"
	"github.com/dorkfun/match-core/internal/gmc/numberguess"
	"github.com/dorkfun/match-core/internal/gmc/tictactoe"
	"github.com/dorkfun/match-core/internal/lifecycle"
	"github.com/dorkfun/match-core/internal/matchqueue"
	"github.com/dorkfun/match-core/internal/migrations"
	"github.com/dorkfun/match-core/internal/recovery"
	"github.com/dorkfun/match-core/internal/redisconn"
	"github.com/dorkfun/match-core/internal/registry"
	"github.com/dorkfun/match-core/internal/session"
	"github.com/dorkfun/match-core/internal/settlement/mock"
	"github.com/dorkfun/match-core/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := config.Load()

	st, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("[MIGRATE] running migrations on startup")
		if err := migrations.Run(cfg.DatabaseURL); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	rdb, err := redisconn.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	games := gmc.NewRegistry()
	games.Register(tictactoe.New())
	games.Register(connectfour.New())
	games.Register(numberguess.New())

	gameIDTable := map[string]string{
		tictactoe.GameID:   tictactoe.GameID,
		connectfour.GameID: connectfour.GameID,
		numberguess.GameID: numberguess.GameID,
	}
	minStakeWei, ok := new(big.Int).SetString(cfg.MinStakeWei, 10)
	if !ok {
		log.Fatalf("invalid MIN_STAKE_WEI: %q", cfg.MinStakeWei)
	}

	// No live Ethereum RPC client is wired in this exercise (see
	// internal/settlement/chain's doc comment); settlement runs against
	// the in-memory ledger adapter regardless of SettlementEnabled.
	sc := mock.New(gameIDTable, minStakeWei)

	reg := registry.New()
	ca := cache.New(rdb)
	q := matchqueue.New(rdb)
	lc := lifecycle.New(cfg, reg, st, ca, q, sc, games)
	sess := session.New(cfg, lc, ca, reg, games, sc)

	ctx := context.Background()
	rd := recovery.New(lc, st, sc)
	if err := rd.Run(ctx); err != nil {
		log.Fatalf("recovery failed: %v", err)
	}

	go sess.RunDepositPollLoop(ctx)
	go runCleanupLoop(ctx, cfg, lc)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	api.SetupRoutes(router, cfg, lc, ca, reg, games, st, q, sess)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	log.Printf("listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// runCleanupLoop periodically evicts COMPLETED matches past their TTL and
// reaps ACTIVE/WAITING matches that have gone stale (spec.md §4.6's
// inactivity timeouts). Grounded on the teacher's manager.go cleanup-ticker
// idiom.
func runCleanupLoop(ctx context.Context, cfg *config.Config, lc *lifecycle.Service) {
	ticker := time.NewTicker(time.Duration(cfg.CleanupIntervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lc.CleanupCompletedMatches(time.Duration(cfg.CompletedMatchTTLMs) * time.Millisecond)
			n := lc.CleanupStaleMatches(ctx, time.Duration(cfg.MatchStaleMs)*time.Millisecond)
			if n > 0 {
				log.Printf("[CLEANUP] reaped %d stale match(es)", n)
			}
		}
	}
}
