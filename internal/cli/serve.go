// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - The serve command: run the HTTP API until interrupted.

package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/learnmate/learnmate/internal/config"
	"github.com/learnmate/learnmate/internal/server"
)

// shutdownTimeout bounds how long in-flight requests get to finish.
const shutdownTimeout = 10 * time.Second

func runServe(args []string) int {
	parsed := NewArgParser(args)

	cfg, err := config.Load()
	if err != nil {
		printError("%v", err)
		return 1
	}
	if port := parsed.FlagInt("port", 0); port > 0 {
		cfg.Server.Port = port
	}
	if err := cfg.RequireAPIKey(); err != nil {
		printError("%v", err)
		return 1
	}

	srv := server.New(cfg, buildManager(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	fmt.Printf("learnmate API listening on port %d\n", cfg.Server.Port)

	select {
	case err := <-errCh:
		if err != nil {
			printError("server failed: %v", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		printError("shutdown failed: %v", err)
		return 1
	}
	return 0
}
