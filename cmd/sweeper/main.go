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

// Warranty Archiver — Retention Sweeper Command
//
// Standalone CLI tool that scans the archive root folder and permanently
// deletes submission folders whose retention date has passed. Runs once
// and exits by default; with --schedule it stays resident and runs on a
// cron expression.
//
// Usage:
//
//	go run ./cmd/sweeper/                       # one sweep, then exit
//	go run ./cmd/sweeper/ --schedule "0 3 * * *"  # daily at 03:00 UTC
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ajensen/warranty-archiver/internal/config"
	"github.com/ajensen/warranty-archiver/internal/drive"
	"github.com/ajensen/warranty-archiver/internal/sweep"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	scheduleFlag := flag.String("schedule", "", "Cron expression for recurring sweeps (empty = run once and exit)")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Build OAuth2 client for Drive ---
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/drive"},
	}
	httpClient := oauth2.NewClient(ctx, oauthCfg.TokenSource(ctx, &oauth2.Token{
		RefreshToken: cfg.Google.RefreshToken,
	}))

	sweeper := sweep.NewSweeper(
		drive.NewClient(httpClient, drive.DefaultBaseURL),
		cfg.Google.DriveFolderID,
	)

	if *scheduleFlag == "" {
		if err := runSweep(ctx, sweeper); err != nil {
			os.Exit(1)
		}
		return
	}

	// --- Scheduled Mode ---
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	_, err = scheduler.NewJob(
		gocron.CronJob(*scheduleFlag, false),
		gocron.NewTask(func() {
			if err := runSweep(ctx, sweeper); err != nil {
				slog.Error("scheduled sweep failed", "error", err)
			}
		}),
		gocron.WithName("retention-sweep"),
	)
	if err != nil {
		slog.Error("invalid --schedule expression", "cron", *scheduleFlag, "error", err)
		os.Exit(1)
	}

	scheduler.Start()
	slog.Info("retention sweeper scheduled", "cron", *scheduleFlag)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel()

	if err := scheduler.Shutdown(); err != nil {
		slog.Error("scheduler shutdown error", "error", err)
	}

	slog.Info("retention sweeper stopped")
}

func runSweep(ctx context.Context, sweeper *sweep.Sweeper) error {
	start := time.Now()

	result, err := sweeper.Sweep(ctx)
	if err != nil {
		slog.Error("sweep failed", "error", err)
		return err
	}

	slog.Info("sweep complete",
		"examined", result.Examined,
		"deleted", result.Deleted,
		"kept", result.Kept,
		"errors", result.Errors,
		"elapsed", time.Since(start),
	)
	return nil
}
