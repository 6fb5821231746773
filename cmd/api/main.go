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

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/oralmate/backend/internal/auth"
	"github.com/oralmate/backend/internal/config"
	"github.com/oralmate/backend/internal/handler"
	"github.com/oralmate/backend/internal/pipeline"
	"github.com/oralmate/backend/internal/relay"
	"github.com/oralmate/backend/internal/store/historystore"
	"github.com/oralmate/backend/internal/store/sessionstore"
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

	gate := auth.NewGate(cfg.Auth.JWTSecret)

	// Initialize session and history stores
	var sessions sessionstore.Store
	var histories historystore.Store
	if cfg.Store.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to redis at %s: %v", cfg.Store.RedisAddr, err)
		}
		sessions = sessionstore.NewRedisStore(client, cfg.Store.SessionTTL, cfg.Store.MaxSessions)
		histories = historystore.NewRedisStore(client, cfg.Store.HistoryTTL)
		log.Printf("using redis stores at %s", cfg.Store.RedisAddr)
	} else {
		sessions = sessionstore.NewMemoryStore(cfg.Store.SessionTTL, cfg.Store.MaxSessions)
		histories = historystore.NewMemoryStore(cfg.Store.HistoryTTL)
		log.Println("REDIS_ADDR 未配置，使用进程内存储（重启后数据丢失）")
	}

	// Initialize the conversation pipeline
	var dialer pipeline.Dialer
	if cfg.Relay.UpstreamURL != "" {
		dialer = pipeline.NewExternal(cfg.Relay.UpstreamURL, cfg.Relay.DialTimeout)
		log.Printf("using external pipeline at %s", cfg.Relay.UpstreamURL)
	} else {
		var chatModel model.ChatModel
		if cfg.AI.Enabled() {
			chatModel, err = cfg.AI.NewChatModel(ctx)
			if err != nil {
				log.Printf("warning: failed to initialize chat model: %v", err)
				log.Println("continuing with mock replies - 请检查 Ark 模型相关环境变量")
				chatModel = nil
			} else {
				log.Println("local pipeline using Ark chat model")
			}
		} else {
			log.Println("Ark 凭证未配置，本地管线使用固定应答")
		}

		local, err := pipeline.NewLocal(ctx, histories, chatModel)
		if err != nil {
			log.Fatalf("failed to initialize local pipeline: %v", err)
		}
		dialer = local
	}

	relayHandler := relay.NewHandler(gate, dialer, cfg.Relay.DialTimeout)
	router := handler.NewRouter(gate, sessions, histories, relayHandler)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("OralMate backend listening on %s", addr)
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
