package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"go-chat-api/internal/blob"
	"go-chat-api/internal/chat"
	"go-chat-api/internal/config"
	"go-chat-api/internal/db"
	"go-chat-api/internal/logging"
	"go-chat-api/internal/message"
	myMiddleware "go-chat-api/internal/middleware"
	"go-chat-api/internal/realtime"
	"go-chat-api/internal/telemetry"
	"go-chat-api/internal/tombstone"
	"go-chat-api/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Platform layer: Postgres and Redis.
	database, err := db.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	if err := database.AutoMigrate(); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("connected to redis")

	blobs, err := blob.NewDiskStore(cfg.BlobDir, cfg.PublicBaseURL)
	if err != nil {
		log.Error("failed to init blob store", "error", err)
		os.Exit(1)
	}

	// Realtime fan-out.
	relay := realtime.NewRelay(redisClient, cfg.JWTSecret, cfg.PublicBaseURL)
	hub := realtime.NewHub(relay, log)
	go hub.Run(ctx)
	go hub.Subscribe(ctx)
	realtimeHandler := realtime.NewHandler(hub, relay, log)

	// Users and authentication.
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, cfg.JWTSecret)
	userHandler := user.NewHandler(userService)
	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// Chat directory.
	chatRepo := chat.NewRepository(database.Conn)
	chatService := chat.NewService(chatRepo, relay, log)
	chatHandler := chat.NewHandler(chatService)

	// Tombstone ledger.
	tombstoneRepo := tombstone.NewRepository(database.Conn)
	tombstoneService := tombstone.NewService(tombstoneRepo)
	tombstoneHandler := tombstone.NewHandler(tombstoneService)

	// Message lifecycle coordinator.
	messageRepo := message.NewRepository(database.Conn)
	messageService := message.NewService(messageRepo, chatService, tombstoneService, relay, blobs, log)
	messageHandler := message.NewHandler(messageService, chatService, blobs, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes.
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)
	r.Get("/ws", realtimeHandler.ServeWs)
	r.Handle("/metrics", telemetry.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/blobs/*", http.StripPrefix("/blobs/", http.FileServer(http.Dir(cfg.BlobDir))))

	// Protected routes.
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)

		r.Get("/api/users/search", userHandler.SearchUsers)

		r.Post("/api/realtime/negotiate", realtimeHandler.Negotiate)

		r.Post("/api/chats", chatHandler.CreateGroup)
		r.Post("/api/chats/direct", chatHandler.CreateDirect)
		r.Get("/api/chats", chatHandler.ListChats)
		r.Get("/api/chats/{chatID}", chatHandler.GetChat)
		r.Delete("/api/chats/{chatID}", chatHandler.Deactivate)
		r.Post("/api/chats/{chatID}/participants/{userID}", chatHandler.AddParticipant)
		r.Delete("/api/chats/{chatID}/participants/{userID}", chatHandler.RemoveParticipant)
		r.Put("/api/chats/{chatID}/participants/{userID}/role", chatHandler.UpdateRole)

		r.Post("/api/chats/{chatID}/messages", messageHandler.Send)
		r.Get("/api/chats/{chatID}/messages", messageHandler.List)
		r.Get("/api/chats/{chatID}/messages/recent", messageHandler.Recent)
		r.Get("/api/chats/{chatID}/messages/history", messageHandler.History)
		r.Get("/api/chats/{chatID}/messages/sync", messageHandler.Sync)
		r.Get("/api/chats/{chatID}/messages/{messageID}", messageHandler.Get)
		r.Delete("/api/chats/{chatID}/messages/{messageID}", messageHandler.Delete)

		r.Get("/api/messages/deleted", tombstoneHandler.ListDeleted)
	})

	server := &http.Server{Addr: cfg.Addr, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
