package main

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/connectify-ai/connectify/config"
	"github.com/connectify-ai/connectify/conversation"
	"github.com/connectify-ai/connectify/document"
	"github.com/connectify-ai/connectify/embedding"
	"github.com/connectify-ai/connectify/llm"
	"github.com/connectify-ai/connectify/logging"
	"github.com/connectify-ai/connectify/matching"
	"github.com/connectify-ai/connectify/server"
	"github.com/connectify-ai/connectify/shutdown"
	"github.com/connectify-ai/connectify/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the connectify HTTP service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if debug {
		cfg.Debug = true
	}
	if jsonLog {
		cfg.JSON = true
	}

	log, err := logging.New(cfg.JSON, cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint: errcheck

	if cfg.Embedding.Timeout <= 0 {
		cfg.Embedding.Timeout = cfg.Timeout
	}
	embedder, err := embedding.NewProvider(ctx, cfg.Embedding)
	if err != nil {
		return err
	}

	store, err := vectorstore.Open(cfg.StorePath, embedder.Fingerprint(), embedder.Dimension())
	if err != nil {
		return err
	}

	provider, err := llm.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	engine := matching.NewEngine(embedder, store, log)
	policy := llm.NewPolicy(provider, cfg.Timeout)
	controller := conversation.NewController(policy, document.NewPDFExtractor(), engine, log)
	srv := server.New(engine, controller, log, cfg.SeedFile)

	if err := srv.SeedJobs(ctx); err != nil {
		log.Warn("seed ingestion failed", zap.Error(err))
	}

	// Listener first, store after: no request may reach a closed store.
	coord := shutdown.NewCoordinator(log, 30*time.Second)
	coord.Register("http", 0, srv.Stop)
	coord.Register("store", 1, func(context.Context) error { return store.Close() })
	if closer, ok := embedder.(io.Closer); ok {
		coord.Register("embedder", 1, func(context.Context) error { return closer.Close() })
	}
	coord.HandleSignals()

	go func() {
		if err := srv.Start(cfg.Listen); err != nil {
			log.Error("http server failed", zap.Error(err))
			_ = coord.ShutdownWithTimeout()
		}
	}()

	<-coord.Done()
	return coord.Err()
}
