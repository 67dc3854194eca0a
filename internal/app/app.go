package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tgchat-app/chat-server/internal/auth"
	"github.com/tgchat-app/chat-server/internal/bot"
	"github.com/tgchat-app/chat-server/internal/config"
	"github.com/tgchat-app/chat-server/internal/core"
	"github.com/tgchat-app/chat-server/internal/store"
	"github.com/tgchat-app/chat-server/internal/store/sqlite"
	transporthttp "github.com/tgchat-app/chat-server/internal/transport/http"
)

// App wires together store, hub, transport and the onboarding bot.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	bot             *bot.Bot
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret: []byte(cfg.JWTSecret),
		Issuer: "tgchat",
		TTL:    24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := core.NewHub(st, cfg.SuperAdminID, cfg.GlobalRoom, logger)
	server := transporthttp.NewServer(hub, authService, st, cfg, logger)

	var onboarding *bot.Bot
	if cfg.BotToken != "" {
		onboarding, err = bot.New(cfg.BotToken, st, logger)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init bot: %w", err)
		}
	} else {
		logger.Warn().Msg("no bot token configured, onboarding bot disabled")
	}

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		bot:             onboarding,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the hub, the HTTP server and the bot, then blocks until the
// context is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gCtx)
		return nil
	})

	if a.bot != nil {
		g.Go(func() error {
			a.bot.Run(gCtx)
			return nil
		})
	}

	g.Go(func() error {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
