package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	gatehouse "github.com/gatehouse-dev/gatehouse"
	echoapi "github.com/gatehouse-dev/gatehouse/api/echo"
	"github.com/gatehouse-dev/gatehouse/cache"
	redistore "github.com/gatehouse-dev/gatehouse/cache/redis"
	"github.com/gatehouse-dev/gatehouse/client"
	"github.com/gatehouse-dev/gatehouse/config"
	"github.com/gatehouse-dev/gatehouse/domain"
	"github.com/gatehouse-dev/gatehouse/internal/auth"
	"github.com/gatehouse-dev/gatehouse/memory"
	"github.com/gatehouse-dev/gatehouse/mongodb"
	"github.com/gatehouse-dev/gatehouse/tracing"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const pruneInterval = 5 * time.Minute

type stores struct {
	codes   domain.AuthCodeRepository
	tokens  domain.TokenRepository
	users   domain.UserRepository
	clients client.ClientStore
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("tracer shutdown failed")
		}
	}()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}

	tokenCache := openTokenCache(cfg)

	clientService := client.NewClientService(st.clients)
	service := gatehouse.NewOAuthService(st.codes, st.tokens, clientService, tokenCache, cfg.Issuer, gatehouse.Policy{
		AuthCodeTTL:     cfg.AuthCodeTTL(),
		AccessTokenTTL:  cfg.AccessTokenTTL(),
		RefreshTokenTTL: cfg.RefreshTokenTTL(),
	})

	backends := []auth.Backend{auth.NewLocalBackend(st.users)}
	if cfg.DirectoryServerURL != "" {
		backends = append(backends, auth.NewDirectoryBackend(cfg.DirectoryServerURL))
	}
	authenticator := auth.NewAuthenticator(backends...)

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, st); err != nil {
			log.Fatal().Err(err).Msg("failed to seed demo data")
		}
	}

	go prune(ctx, st)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	echoapi.NewOAuth2API(service, authenticator).RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	log.Info().Str("port", cfg.HTTPPort).Str("storage", cfg.Storage).Msg("gatehouse started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if cfg.Storage == "mongo" {
		mongodb.Close(shutdownCtx)
	}
}

func setupLogging(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func openStores(ctx context.Context, cfg *config.ServerConfig) (*stores, error) {
	switch cfg.Storage {
	case "memory":
		return &stores{
			codes:   memory.NewAuthCodeStore(),
			tokens:  memory.NewTokenStore(),
			users:   memory.NewUserStore(),
			clients: memory.NewClientStore(),
		}, nil
	case "mongo":
		if err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
			return nil, err
		}
		db := mongodb.DB()
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			return nil, err
		}
		return &stores{
			codes:   mongodb.NewAuthCodeRepository(db),
			tokens:  mongodb.NewTokenRepository(db),
			users:   mongodb.NewUserRepository(db),
			clients: mongodb.NewClientRepository(db),
		}, nil
	default:
		return nil, errors.New("unknown STORAGE value: " + cfg.Storage)
	}
}

func openTokenCache(cfg *config.ServerConfig) cache.TokenStore {
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		return redistore.NewTokenStore(rdb, cfg.RedisPrefix)
	}
	return cache.NewMemoryTokenStore(time.Minute)
}

// seedDemoData registers the demonstration client and user so the flow
// can be exercised out of the box. Creation is idempotent; existing
// records are left untouched.
func seedDemoData(ctx context.Context, st *stores) error {
	if _, err := st.clients.GetClient(ctx, "frontend_client"); errors.Is(err, client.ErrClientNotFound) {
		err := st.clients.CreateClient(ctx, &client.Client{
			ID:                   "frontend_client",
			Secret:               "secret",
			Type:                 client.Confidential,
			Name:                 "Demo Frontend",
			RedirectURIs:         []string{"http://localhost:5173/callback"},
			AllowedScopes:        []string{"read"},
			AllowedGrantTypes:    []string{"authorization_code", "refresh_token"},
			AllowedResponseTypes: []string{"code"},
			IsActive:             true,
		})
		if err != nil {
			return err
		}
		log.Info().Msg("seeded demo client")
	} else if err != nil {
		return err
	}

	if _, err := st.users.GetUserByUsername(ctx, "demo"); errors.Is(err, domain.ErrNotFound) {
		hash, err := auth.HashPassword("demo")
		if err != nil {
			return err
		}
		err = st.users.CreateUser(ctx, &domain.User{
			ID:           uuid.NewString(),
			Username:     "demo",
			PasswordHash: hash,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		log.Info().Msg("seeded demo user")
	} else if err != nil {
		return err
	}

	return nil
}

// prune periodically garbage-collects expired authorization codes and
// revoked, fully expired token rows.
func prune(ctx context.Context, st *stores) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := st.codes.DeleteExpiredAuthCodes(ctx); err != nil {
				log.Warn().Err(err).Msg("auth code pruning failed")
			}
			if err := st.tokens.DeleteExpiredRevoked(ctx, time.Now().UTC()); err != nil {
				log.Warn().Err(err).Msg("token pruning failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
