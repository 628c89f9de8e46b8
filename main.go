package main

import (
	"context"
	"log"
	"os"
	"time"

	"scholarbot/internal/api"
	"scholarbot/internal/config"
	"scholarbot/internal/embedding"
	"scholarbot/internal/index"
	"scholarbot/internal/ingest"
	"scholarbot/internal/rag"
	"scholarbot/internal/redis"
	"scholarbot/internal/session"
	"scholarbot/internal/storage"
	"scholarbot/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("SCHOLARBOT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("SCHOLARBOT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var store session.Store = session.NewMemoryStore()
	if cfg.BasicConfig.SessionBackend == "redis" {
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb)
	}

	embedder, err := embedding.NewClient(cfg.Embedding)
	if err != nil {
		log.Fatalf("init embedding client: %v", err)
	}
	idx, err := index.NewClient(cfg.Index)
	if err != nil {
		log.Fatalf("init vector index client: %v", err)
	}
	ensureCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := idx.Ensure(ensureCtx); err != nil {
		cancel()
		log.Fatalf("ensure vector index: %v", err)
	}
	cancel()

	chatModel, err := rag.NewChatModel(context.Background(), cfg.Chat.Provider, cfg.Providers[cfg.Chat.Provider])
	if err != nil {
		log.Fatalf("init chat model: %v", err)
	}

	orchestrator := rag.NewOrchestrator(
		store,
		rag.NewRewriter(chatModel),
		rag.NewRetriever(embedder, idx),
		rag.NewComposer(chatModel),
		rag.WithHistoryWindow(cfg.Chat.HistoryWindow),
		rag.WithTimeouts(
			time.Duration(cfg.Chat.GenerateTimeout)*time.Second,
			time.Duration(cfg.Chat.RetrieveTimeout)*time.Second,
		),
	)

	ingestor, err := ingest.NewService(embedder, idx, worker.NewPool(0), db)
	if err != nil {
		log.Fatalf("init ingestion service: %v", err)
	}

	uploadDir := cfg.BasicConfig.UploadDir
	if uploadDir == "" {
		uploadDir = "./data/uploads"
	}
	staticDir := cfg.BasicConfig.StaticDir
	if staticDir == "" {
		staticDir = "./static"
	}
	handlers := api.NewHandler(orchestrator, ingestor, uploadDir, staticDir)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8000"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
