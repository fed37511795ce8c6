package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/moodcine/backend/internal/config"
	"github.com/moodcine/backend/internal/handler"
	"github.com/moodcine/backend/internal/handler/movies"
	"github.com/moodcine/backend/internal/logging"
	"github.com/moodcine/backend/internal/server"
	"github.com/moodcine/backend/internal/service/chat"
	"github.com/moodcine/backend/internal/service/classifier"
	"github.com/moodcine/backend/internal/service/tmdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		logging.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	classifierClient := classifier.NewClient(cfg.Classifier, nil)
	logging.Info().Str("url", cfg.Classifier.URL).Msg("classifier client configured")

	// Posters and the movie catalog are optional; keep the interfaces nil when TMDB is off.
	var (
		posters chat.PosterLookup
		catalog movies.Catalog
	)
	if cfg.TMDB.Enabled() {
		tmdbClient, err := tmdb.NewClient(cfg.TMDB, nil)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to initialize TMDB client")
		}
		posters = tmdbClient
		catalog = tmdbClient
		logging.Info().Str("language", cfg.TMDB.Language).Msg("TMDB client initialized")
	} else {
		logging.Info().Msg("TMDB_API_KEY 未配置，跳过海报与影片检索")
	}

	chatService := chat.NewService(classifierClient, posters, chat.Options{
		RequestTimeout:    cfg.Chat.RequestTimeout,
		PosterConcurrency: cfg.Chat.PosterConcurrency,
	})
	go chatService.RunSweeper(ctx, sweepInterval(cfg.Chat), cfg.Chat.SessionTTL)

	router := handler.NewRouter(chatService, catalog, classifierClient, handler.Options{
		RateLimit:      cfg.Server.RateLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	logging.Info().Str("addr", cfg.Server.Addr).Msg("moodcine backend listening")
	if err := server.Run(ctx, server.New(cfg.Server, router)); err != nil {
		logging.Fatal().Err(err).Msg("server error")
	}
}

// sweepInterval checks for idle sessions a few times per TTL, but not more than once a minute.
func sweepInterval(cfg config.ChatConfig) time.Duration {
	return max(cfg.SessionTTL/4, time.Minute)
}
