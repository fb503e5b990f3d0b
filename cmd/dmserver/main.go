package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/echodm/chat-server/internal/auth"
	"github.com/echodm/chat-server/internal/chat"
	"github.com/echodm/chat-server/internal/config"
	"github.com/echodm/chat-server/internal/contacts"
	"github.com/echodm/chat-server/internal/files"
	"github.com/echodm/chat-server/internal/httpapi"
	"github.com/echodm/chat-server/internal/messaging"
	"github.com/echodm/chat-server/internal/presence"
	"github.com/echodm/chat-server/internal/protocol"
	"github.com/echodm/chat-server/internal/ratelimit"
	"github.com/echodm/chat-server/internal/store"
	"github.com/echodm/chat-server/internal/ws"
)

func main() {
	cfg := config.Load()

	wsConfig := ws.DefaultServerConfig()
	wsConfig.ListenAddr = cfg.ListenAddr
	wsConfig.WorkerPoolSize = cfg.WorkerPoolSize
	wsConfig.MaxConnections = cfg.MaxConnections
	wsConfig.ReadTimeout = cfg.ReadTimeout
	wsConfig.WriteTimeout = cfg.WriteTimeout

	// --- MongoDB (system of record) ---
	dialConfig := store.DefaultDialConfig()
	dialConfig.URI = cfg.MongoURI
	dialConfig.Database = cfg.MongoDatabase

	dialCtx, cancelDial := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := store.Dial(dialCtx, dialConfig)
	cancelDial()
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	users := store.NewUserStore(db)
	messages := store.NewMessageStore(db)

	// --- Redis (rate limiting; the limiter fails open without it) ---
	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("redis unreachable at %s: %v (rate limiting fails open)", cfg.RedisAddr, err)
		}
		cancelPing()
		limiter = ratelimit.NewLimiter(redisClient)
	}

	// --- NATS (audit events; optional) ---
	var audit *messaging.Publisher
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultConfig()
		natsConfig.URL = cfg.NATSURL
		audit, err = messaging.Connect(natsConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
	}

	log.Printf("EchoDM server starting")
	log.Printf("  ws_addr:         %s", cfg.ListenAddr)
	log.Printf("  api_addr:        %s", cfg.APIAddr)
	log.Printf("  worker_pool:     %d", cfg.WorkerPoolSize)
	log.Printf("  max_connections: %d", cfg.MaxConnections)
	log.Printf("  mongo_uri:       %s", cfg.MongoURI)
	log.Printf("  redis_addr:      %s", cfg.RedisAddr)
	log.Printf("  nats_url:        %s", cfg.NATSURL)
	log.Printf("  upload_dir:      %s", cfg.UploadDir)

	registry := presence.NewRegistry()
	lifecycle := chat.NewLifecycle(registry, audit)

	dispatcher := ws.NewMessageDispatcher(nil)
	server := ws.NewServer(wsConfig, limiter, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	engine := chat.NewEngine(messages, users, registry, server, audit)

	// -----------------------------------------------------------------------
	// send_message — persist, enrich and fan out a direct message
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSendMessage, func(conn *ws.Connection, msg interface{}) {
		sendMsg, ok := msg.(protocol.SendMessageMsg)
		if !ok {
			return
		}
		if conn.UserID == "" {
			log.Printf("send_message from unidentified conn=%s dropped", conn.ID)
			return
		}
		// The sender is whoever owns the connection, whatever the payload says.
		sendMsg.Sender = conn.UserID

		if !limiter.Allow(context.Background(), conn.UserID, ratelimit.RuleMessage) {
			resp, _ := protocol.NewServerMessage(protocol.TypeRateLimited, protocol.RateLimitedMsg{
				RetryAfter: int(ratelimit.RuleMessage.Window.Seconds()),
			})
			_ = conn.WriteMessage(resp)
			return
		}

		engine.HandleSend(sendMsg)
	})

	server.SetOnConnect(func(conn *ws.Connection) {
		lifecycle.Connected(conn.ID, conn.UserID)
	})
	server.SetOnDisconnect(lifecycle.Disconnected)

	// --- HTTP API ---
	uploads, err := files.NewStorage(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to prepare upload dir: %v", err)
	}
	authn := auth.NewAuthenticator(cfg.JWTSecret, cfg.TokenTTL)
	api := httpapi.New(authn, users, messages, contacts.NewAggregator(messages, users), uploads, limiter)

	apiServer := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: api.Router(cfg.AllowedOrigins),
	}
	go func() {
		log.Printf("api: listening on %s", cfg.APIAddr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("api shutdown error: %v", err)
		}
		cancel()

		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		audit.Close()
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
