// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Warranty Archiver — Submission Service
//
// Entry point for the archiver service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL (submission ledger) and Redis (dedup filter)
//  3. Builds an OAuth2 client for the Gmail and Drive APIs
//  4. Serves the Gmail push webhook and health endpoints
//  5. Runs a periodic poll loop as a safety net behind the webhook
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ajensen/warranty-archiver/internal/archive"
	"github.com/ajensen/warranty-archiver/internal/config"
	"github.com/ajensen/warranty-archiver/internal/dedup"
	"github.com/ajensen/warranty-archiver/internal/drive"
	"github.com/ajensen/warranty-archiver/internal/fetch"
	"github.com/ajensen/warranty-archiver/internal/gmail"
	"github.com/ajensen/warranty-archiver/internal/ledger"
	"github.com/ajensen/warranty-archiver/internal/pipeline"
	"github.com/ajensen/warranty-archiver/internal/webhook"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting warranty archiver service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"query", cfg.SearchQuery,
		"poll_interval", cfg.PollInterval,
		"poll_lookback", cfg.PollLookback,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	// --- Submission Ledger (Postgres) ---
	store, err := ledger.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise submission ledger", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	filter := dedup.NewFilter(rdb)
	if err := filter.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Build OAuth2 client for Gmail + Drive ---
	// A single refresh token covers both APIs; the token source renews
	// access tokens transparently.
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/drive",
		},
	}
	httpClient := oauth2.NewClient(ctx, oauthCfg.TokenSource(ctx, &oauth2.Token{
		RefreshToken: cfg.Google.RefreshToken,
	}))

	// --- API Clients ---
	mail := gmail.NewClient(httpClient, gmail.DefaultBaseURL)
	driveClient := drive.NewClient(httpClient, drive.DefaultBaseURL)

	// --- Pipeline ---
	processor := pipeline.NewProcessor(pipeline.Config{
		Source:   mail,
		Fetcher:  fetch.NewFetcher(cfg.DownloadDir),
		Archiver: archive.NewWriter(driveClient, cfg.Google.DriveFolderID),
		Ledger:   store,
		Dedup:    filter,
		Query:    cfg.SearchQuery,
		Lookback: cfg.PollLookback,
	})

	// --- Webhook Server ---
	// Started before the poll loop so Gmail push notifications are not
	// dropped while the first pass runs.
	handler := webhook.NewHandler(processor, store)
	ready, err := webhook.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start webhook server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("webhook server ready")

	// --- Poll Loop ---
	// Safety net behind the webhook: push notifications can be dropped,
	// so every message is also discovered by the overlapping poll window.
	poller := pipeline.NewPoller(processor, cfg.PollInterval)
	done := make(chan struct{})
	go func() {
		defer close(done)
		poller.Run(ctx)
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel() // Stop the webhook server and poll loop

	<-done
	rdb.Close()

	slog.Info("warranty archiver service stopped")
}
