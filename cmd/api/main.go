package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yaori/paotuan/backend/internal/config"
	"github.com/yaori/paotuan/backend/internal/engine"
	"github.com/yaori/paotuan/backend/internal/handler"
	playerHandler "github.com/yaori/paotuan/backend/internal/handler/player"
	"github.com/yaori/paotuan/backend/internal/messaging"
	"github.com/yaori/paotuan/backend/internal/service/ai"
	"github.com/yaori/paotuan/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to initialize storage: %v", err)
	}
	log.Printf("storage backend: %s", cfg.Storage.Backend)

	var generator ai.Generator
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
			log.Println("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		} else {
			generator = ai.NewChatModelGenerator(chatModel)
			log.Println("AI narrative generator initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	hub := messaging.NewHub()

	var orchestrator *engine.Orchestrator
	if generator != nil {
		orchestrator = engine.NewOrchestrator(store, generator, hub, nil, engine.Config{
			BatchEnabled:     cfg.Multiplayer.BatchEnabled,
			RoundWindow:      cfg.Multiplayer.RoundWindow,
			ReminderInterval: cfg.Multiplayer.ReminderInterval,
			MaxRetries:       cfg.DM.MaxRetries,
			RetryBaseDelay:   cfg.DM.RetryBaseDelay,
			Temperature:      cfg.DM.Temperature,
			MaxTokens:        cfg.DM.MaxTokens,
			ShowCheckHints:   cfg.DM.ShowCheckHints,
			ImageEnabled:     cfg.Image.Enabled,
		})
	} else {
		log.Println("编排器未启用，消息接口只记录历史不生成叙述")
	}

	rules := playerHandler.Rules{
		FreePoints:   cfg.Player.FreePoints,
		MinAttribute: cfg.Player.MinAttribute,
		MaxAttribute: cfg.Player.MaxAttribute,
	}
	router := handler.NewRouter(store, orchestrator, hub, rules)

	startServer(ctx, cfg.Server, router)
}

func buildStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Backend == "redis" {
		return storage.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MaxHistory)
	}
	return storage.NewFileStore(cfg.Dir, cfg.MaxHistory)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("paotuan backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
