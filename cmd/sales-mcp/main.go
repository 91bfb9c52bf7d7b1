package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	salesbridge "github.com/dawitel/line-sales-bridge"
	"github.com/dawitel/line-sales-bridge/mcpserver"
	"github.com/dawitel/line-sales-bridge/store"
	"github.com/go-redis/redis/v8"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := salesbridge.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	// stdout belongs to the stdio transport.
	logger := salesbridge.NewLogger(cfg.Logging, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer, err := salesbridge.NewSheetsWriter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.MessageStore.Snapshot == store.SnapshotRedis {
		redisClient, err = salesbridge.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	snapshot, err := salesbridge.NewSnapshotter(cfg.MessageStore, cfg.Redis, redisClient)
	if err != nil {
		return err
	}
	defer snapshot.Close()

	server := mcpserver.NewServer(writer, mcpserver.NewSnapshotSource(snapshot), version, logger)

	logger.Info().Str("transport", cfg.MCP.Transport).Msg("Configuration validated successfully")
	return mcpserver.Run(ctx, server, cfg.MCP.Transport, cfg.Server.Addr(), logger)
}
