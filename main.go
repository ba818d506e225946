package main

import (
	"conference-webapp/auth"
	"conference-webapp/config"
	"conference-webapp/database"
	"conference-webapp/handlers"
	"conference-webapp/integrity"
	"conference-webapp/logger"
	"conference-webapp/router"
	"conference-webapp/stats"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logs, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatal(err)
	}
	defer logs.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logs.Fatal("cannot open store", "backend", cfg.StoreBackend, "error", err)
	}
	defer store.Close(context.Background())

	entities := database.NewEntities(store)
	graph := integrity.New(entities, logs)
	if err := graph.EnsureIndexes(ctx); err != nil {
		logs.Warn("ensure indexes", "error", err)
	}
	if _, err := graph.SweepOrphans(ctx); err != nil {
		logs.Warn("orphan sweep failed", "error", err)
	}

	var sessions auth.SessionStore = auth.NewDocumentSessions(store)
	if cfg.SessionBackend == config.SessionsInRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			logs.Fatal("redis is not available", "addr", cfg.RedisAddr, "error", err)
		}
		defer client.Close()
		sessions = auth.NewRedisSessions(client)
	}
	authEngine := auth.New(store, sessions, auth.Options{
		SigningKey: cfg.SigningKey,
		TTL:        cfg.SessionTTL,
		TouchAfter: cfg.SessionTouchAfter,
	}, logs)
	if err := authEngine.EnsureIndexes(ctx); err != nil {
		logs.Warn("ensure auth indexes", "error", err)
	}

	h := handlers.New(entities, graph, stats.New(entities), authEngine, logs)

	app := fiber.New()
	router.SetupRoutes(app, h, router.Options{SigningKey: cfg.SigningKey, PublicReads: cfg.PublicReads})

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	logs.Info("listening", "addr", cfg.ListenAddr, "store", cfg.StoreBackend, "public_reads", cfg.PublicReads)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		logs.Error("server stopped", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (database.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreLocal:
		return database.NewLocalStore(cfg.LocalDBPath)
	case config.StoreMongo:
		return database.DBInit(ctx, cfg.MongoConnString, cfg.MongoDatabase, cfg.MongoTransactions)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
