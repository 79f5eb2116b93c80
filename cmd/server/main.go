// Command secrets-server starts the secret board web server.
package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/and161185/secrets/internal/config"
	"github.com/and161185/secrets/internal/limiter"
	"github.com/and161185/secrets/internal/migrate"
	"github.com/and161185/secrets/internal/oauthstate"
	"github.com/and161185/secrets/internal/repository"
	"github.com/and161185/secrets/internal/repository/memory"
	"github.com/and161185/secrets/internal/repository/postgres"
	grpcserver "github.com/and161185/secrets/internal/server/grpc"
	httpserver "github.com/and161185/secrets/internal/server/http"
	"github.com/and161185/secrets/internal/service"
	"github.com/and161185/secrets/internal/session"
	"github.com/and161185/secrets/internal/view"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const (
	shutdownTimeout = 5 * time.Second
	janitorEvery    = time.Minute
	healthEvery     = 10 * time.Second
)

// main loads configuration from the environment and runs until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr()),
		zap.String("sessionStore", cfg.SessionStore),
		zap.Bool("memoryDB", cfg.MemoryDB()),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

type accountStore interface {
	repository.AccountRepository
	grpcserver.Pinger
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Accounts
	var (
		accounts accountStore
		lim      limiter.Limiter
	)
	if cfg.MemoryDB() {
		accounts = memory.NewAccountRepo()
		lim = limiter.Nop{}
		logger.Warn("accounts are kept in memory and lost on restart")
	} else {
		if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		if files, err := migrate.Embedded(); err == nil {
			logger.Info("schema up to date", zap.Strings("migrations", files))
		}
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		accounts = pgAccounts{postgres.NewAccountRepo(db), db}
		lim = limiter.NewPG(db.Pool, cfg.Limiter())
	}

	// Sessions
	var store session.Store
	switch cfg.SessionStore {
	case "redis":
		rs, err := session.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rs.Close() }()
		store = rs
	default:
		ms := session.NewMemoryStore()
		go ms.Janitor(ctx, janitorEvery)
		store = ms
	}
	sessions := session.NewManager(store, accounts, cfg.SessionIdleTTL)

	// Services
	oauthCfg, userInfoURL := cfg.OAuth2()
	creds := service.NewCredentialService(accounts, lim)
	fed := service.NewFederatedService(accounts, service.NewOAuthProvider(oauthCfg, userInfoURL))

	views, err := view.New()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// the state signer gets its own key derived from the session secret
	stateKey := sha256.Sum256([]byte("oauth-state\x00" + cfg.SessionSecret))

	app := httpserver.New(httpserver.Deps{
		Log:         logger,
		Credentials: creds,
		Federation:  fed,
		Sessions:    sessions,
		Accounts:    accounts,
		Views:       views,
		State:       oauthstate.NewSigner(stateKey[:], oauthstate.DefaultTTL),
		Cookies:     httpserver.NewCookieStore([]byte(cfg.SessionSecret), cfg.CookieSecure),
		Provider:    cfg.OAuthProvider,
		Registry:    reg,
		Ready: func(ctx context.Context) error {
			if err := accounts.Ping(ctx); err != nil {
				return err
			}
			return sessions.Ping(ctx)
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Health (optional)
	var hs *grpcserver.Health
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			return fmt.Errorf("listen health: %w", err)
		}
		hs = grpcserver.NewHealth(logger, map[string]grpcserver.Pinger{
			"accounts": accounts,
			"sessions": sessions,
		}, cfg.Dev)
		go hs.Monitor(ctx, healthEvery)
		go func() {
			logger.Info("health listening", zap.String("addr", cfg.GRPCHealthAddr))
			if err := hs.Serve(lis); err != nil {
				errCh <- fmt.Errorf("health: %w", err)
			}
		}()
	}

	// Wait for stop
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	// graceful shutdown
	if hs != nil {
		hs.Stop(shutdownTimeout)
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return runErr
}

// pgAccounts adds the pool's Ping to the PostgreSQL repository.
type pgAccounts struct {
	*postgres.AccountRepo
	db *postgres.DB
}

func (p pgAccounts) Ping(ctx context.Context) error { return p.db.Ping(ctx) }
