package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stanipov/NeuroQuest/internal/ai"
	"github.com/stanipov/NeuroQuest/internal/config"
	"github.com/stanipov/NeuroQuest/internal/engine"
	"github.com/stanipov/NeuroQuest/internal/logger"
	"github.com/stanipov/NeuroQuest/internal/lore"
	"github.com/stanipov/NeuroQuest/internal/memory"
	"github.com/stanipov/NeuroQuest/internal/migration"
	"github.com/stanipov/NeuroQuest/internal/models"
	"github.com/stanipov/NeuroQuest/internal/repository"
	"github.com/stanipov/NeuroQuest/internal/state"
)

func main() {
	_ = godotenv.Load()

	resumeID := flag.String("resume", "", "session ID of a saved game to resume")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zl, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		// Logs go to stderr so they never interleave with the narration.
		OutputPath: "stderr",
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zl.Sync()
	zl.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	counter, err := ai.NewTokenCounter(cfg.MemoryTokenEncoding)
	if err != nil {
		// The memory manager falls back to a character-count estimate.
		zl.Warn("Token counter unavailable", zap.Error(err))
	}

	client, err := ai.NewClient(ai.FactoryConfig{
		Provider: cfg.AIProvider,
		Model:    cfg.AIModel,
		APIKey:   cfg.AIAPIKey,
		BaseURL:  cfg.AIBaseURL,
		Timeout:  cfg.AITimeout,
		Counter:  counter,
	}, zl)
	if err != nil {
		zl.Fatal("Failed to create AI client", zap.Error(err))
	}

	bundle, err := lore.Load(cfg.LorePath)
	if err != nil {
		zl.Fatal("Failed to load lore bundle", zap.Error(err))
	}
	zl.Info("Lore bundle loaded",
		zap.String("setting", bundle.World.Setting),
		zap.Int("characters", len(bundle.Characters)),
		zap.Int("conditions", len(bundle.Conditions)))

	store := state.NewStore(bundle.Characters, zl)
	mem := memory.NewManager(memory.Config{
		WindowSize:    cfg.MemoryWindowSize,
		RecallCount:   cfg.MemoryRecallCount,
		MinSimilarity: cfg.MemoryRecallMinSim,
		TokenBudget:   cfg.MemoryTokenBudget,
	}, counter, zl)
	if bundle.Opening != "" {
		if err := mem.Append(bundle.OpeningEvent()); err != nil {
			zl.Warn("Failed to seed opening narration", zap.Error(err))
		}
	}

	sessions, cleanup, err := setupSessionStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("Failed to set up session store", zap.Error(err))
	}
	defer cleanup()

	orch := engine.NewOrchestrator(client, store, mem, &bundle.World, bundle.Conditions, engine.Config{
		CollaboratorTimeout: cfg.AITimeout,
		CollaboratorRetries: cfg.AIMaxRetries,
	}, zl)

	if *resumeID != "" {
		snap, err := sessions.Load(ctx, *resumeID)
		if err != nil {
			zl.Fatal("Failed to resume session", zap.String("sessionID", *resumeID), zap.Error(err))
		}
		if err := orch.RestoreSnapshot(*snap); err != nil {
			zl.Fatal("Failed to restore snapshot", zap.Error(err))
		}
		zl.Info("Session resumed",
			zap.String("sessionID", snap.SessionID), zap.Int("turnIndex", snap.TurnIndex))
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, zl)
	}

	runGameLoop(ctx, orch, sessions, bundle, *resumeID == "", zl)
}

// runGameLoop drives the read-classify-resolve loop over stdin until the
// session terminates or the context is cancelled.
func runGameLoop(
	ctx context.Context,
	orch *engine.Orchestrator,
	sessions repository.SessionRepository,
	bundle *lore.Bundle,
	fresh bool,
	zl *zap.Logger,
) {
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	if fresh && bundle.Opening != "" {
		fmt.Fprintln(out, bundle.Opening)
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "(session %s — type 'exit' to leave)\n", orch.SessionID())
	out.Flush()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if ctx.Err() != nil {
			fmt.Fprintln(out, "\nThe story pauses here.")
			return
		}

		fmt.Fprint(out, "> ")
		out.Flush()
		if !scanner.Scan() {
			return
		}

		result, err := orch.RunTurn(ctx, scanner.Text())
		if errors.Is(err, engine.ErrSessionEnded) {
			return
		}
		if err != nil {
			// StateCorruption or a missing player: not recoverable.
			zl.Error("Session aborted", zap.Error(err))
			fmt.Fprintln(out, "The story collapses under its own weight. This session cannot continue.")
			return
		}

		fmt.Fprintln(out, result.Narration)
		fmt.Fprintln(out)

		if result.TurnAdvanced {
			saveSnapshot(ctx, orch, sessions, zl)
		}

		switch result.Termination {
		case models.TerminationWin:
			fmt.Fprintln(out, "*** You have won. ***")
			return
		case models.TerminationLose:
			fmt.Fprintln(out, "*** The tale ends in defeat. ***")
			return
		case models.TerminationExit:
			return
		}
	}
}

// saveSnapshot persists the turn boundary; a failed save is logged, not
// fatal, so a storage hiccup does not kill a running game.
func saveSnapshot(ctx context.Context, orch *engine.Orchestrator, sessions repository.SessionRepository, zl *zap.Logger) {
	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sessions.Save(saveCtx, orch.Snapshot()); err != nil {
		zl.Warn("Failed to save session snapshot", zap.Error(err))
	}
}

// setupSessionStore builds the configured SessionRepository along with a
// cleanup function for its underlying connections.
func setupSessionStore(ctx context.Context, cfg *config.Config, zl *zap.Logger) (repository.SessionRepository, func(), error) {
	switch strings.ToLower(cfg.SessionStore) {
	case "", "memory":
		zl.Info("Using in-memory session store")
		return repository.NewMemorySessionRepository(), func() {}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		zl.Info("Using Redis session store", zap.String("addr", cfg.RedisAddr))
		return repository.NewRedisSessionRepository(client, cfg.RedisTTL, zl),
			func() { client.Close() }, nil

	case "postgres":
		poolCfg, err := pgxpool.ParseConfig(cfg.GetDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse database config: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.DBMaxConns)

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		migrator := migration.NewMigrator(migration.Config{
			MigrationsPath: "migrations",
			MigrationsFS:   repository.MigrationsFS,
		}, pool)
		if err := migrator.Up(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}

		zl.Info("Using PostgreSQL session store", zap.String("host", cfg.DBHost))
		return repository.NewPgSessionRepository(pool, zl),
			func() { pool.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

func serveMetrics(addr string, zl *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	zl.Info("Metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Error("Metrics server stopped", zap.Error(err))
	}
}
