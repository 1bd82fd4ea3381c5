// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/AleutianForge/services/forge/api"
)

// initTracer installs a stdout span exporter. Local-first deployments
// have no collector; spans on stderr are still grep-able.
func initTracer() (func(context.Context), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			slog.Error("Failed to shut down tracer provider", slog.String("error", err.Error()))
		}
	}, nil
}

func newServeCmd(state *appState) *cobra.Command {
	var tracing bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipelines over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if tracing {
				cleanup, err := initTracer()
				if err != nil {
					return err
				}
				defer cleanup(context.Background())
			}

			server := api.NewServer(state.client, state.cfg)
			return server.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&tracing, "tracing", false, "export spans to stdout")
	return cmd
}
