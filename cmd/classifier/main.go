package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"

	"github.com/moodcine/backend/internal/config"
	"github.com/moodcine/backend/internal/handler"
	"github.com/moodcine/backend/internal/logging"
	modelrecommend "github.com/moodcine/backend/internal/model/recommend"
	"github.com/moodcine/backend/internal/server"
	"github.com/moodcine/backend/internal/service/ai"
	emotionservice "github.com/moodcine/backend/internal/service/emotion"
	"github.com/moodcine/backend/internal/service/recommend"
)

const (
	sessionIdle   = 2 * time.Hour
	sweepInterval = 10 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		logging.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// Initialize AI service
	var (
		chatModel model.ChatModel
		replier   recommend.Replier
	)
	if cfg.AI.Enabled() {
		chatModel, err = cfg.AI.NewChatModel(ctx)
		if err != nil {
			logging.Warn().Err(err).Msg("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		} else if aiService, err := ai.NewService(ctx, chatModel); err != nil {
			logging.Warn().Err(err).Msg("failed to initialize AI service")
		} else {
			replier = aiService
			logging.Info().Str("model", cfg.AI.Model).Msg("AI service initialized successfully")
		}
	} else {
		logging.Info().Msg("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	emotionCfg := emotionservice.Config{
		Enabled:      cfg.AI.EmotionLLMEnabled,
		HistoryLimit: cfg.AI.EmotionHistoryLimit,
	}
	emotionSvc, err := emotionservice.NewService(ctx, chatModel, emotionCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize emotion service")
	}
	switch {
	case emotionSvc.Enabled():
		logging.Info().Msg("emotion classifier uses the chat model")
	case emotionCfg.Enabled:
		logging.Info().Msg("emotion classifier requested but chat model unavailable, falling back to keywords")
	default:
		logging.Info().Msg("emotion classifier disabled by configuration")
	}

	engine := recommend.NewEngine(cfg.Backend, emotionSvc, replier,
		modelrecommend.NewMemoryCatalog(modelrecommend.Seed()))
	go sweep(ctx, engine)

	router := handler.NewClassifierRouter(engine, handler.Options{
		RateLimit:      cfg.Backend.Server.RateLimit,
		AllowedOrigins: cfg.Backend.Server.AllowedOrigins,
	})

	logging.Info().Str("addr", cfg.Backend.Server.Addr).
		Int("min_turns", cfg.Backend.MinTurns).
		Int("max_turns", cfg.Backend.MaxTurns).
		Msg("classifier backend listening")
	if err := server.Run(ctx, server.New(cfg.Backend.Server, router)); err != nil {
		logging.Fatal().Err(err).Msg("server error")
	}
}

func sweep(ctx context.Context, engine *recommend.Engine) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := engine.Sweep(sessionIdle); n > 0 {
				logging.Debug().Int("removed", n).Msg("[classify] forgot idle sessions")
			}
		}
	}
}
