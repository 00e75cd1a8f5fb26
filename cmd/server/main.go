package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"

	"github.com/YetiPanda/jade-ecosystem-sub005/internal/config"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/event"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/gateway"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/handler"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/repository"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/router"
	"github.com/YetiPanda/jade-ecosystem-sub005/internal/service"
	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/constant"
)

func main() {
	ctx := context.TODO()

	// Load configuration
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Check database connection
	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	// Event bus connects the write path to live delivery
	bus := event.NewBus()

	// Initialize services
	convService := service.NewConversationService(repos.Conversation, repos.ReadStatus, bus)
	msgService := service.NewMessageService(repos.Message, repos.Conversation, bus)

	// Initialize WebSocket server
	wsServer := gateway.NewWsServer(cfg, repos.Redis, bus)
	wsServer.Run(ctx)
	defer wsServer.Stop()
	log.CtxInfo(ctx, "websocket server started")

	// Initialize handlers
	handlers := &router.Handlers{
		Conversation: handler.NewConversationHandler(convService),
		Message:      handler.NewMessageHandler(msgService),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	// Setup routes
	router.SetupRouter(h, handlers, wsServer)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")

	// Graceful shutdown
	if err := h.Shutdown(ctx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}
