// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianKernel/pkg/logging"
	"github.com/AleutianAI/AleutianKernel/services/kernel/config"
	"github.com/AleutianAI/AleutianKernel/services/kernel/items"
	"github.com/AleutianAI/AleutianKernel/services/kernel/mutation"
	"github.com/AleutianAI/AleutianKernel/services/kernel/routes"
	"github.com/AleutianAI/AleutianKernel/services/kernel/store"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	// Without a collector endpoint the kernel runs untraced.
	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
		return func(context.Context) {}, nil
	}

	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("kernel-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// bootstrapStore ensures the schema exists as a trunk commit and sweeps any
// mutation branches a previous process left behind.
func bootstrapStore(ctx context.Context, st *store.Store) error {
	sess, err := st.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring bootstrap session: %w", err)
	}
	defer sess.Release()

	if err := items.EnsureSchema(ctx, sess); err != nil {
		return err
	}
	if _, err := sess.CommitAll(ctx, "initialize kernel schema"); err != nil &&
		!errors.Is(err, store.ErrNothingToCommit) {
		return fmt.Errorf("committing kernel schema: %w", err)
	}

	swept, err := mutation.SweepOrphans(ctx, sess)
	if err != nil {
		return err
	}
	if swept > 0 {
		slog.Info("swept orphaned mutation branches", "count", swept)
	}
	return nil
}

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("KERNEL_LOG_LEVEL")),
		Service: "kernel",
		JSON:    true,
		Output:  os.Stdout,
		LogDir:  os.Getenv("KERNEL_LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg, err := config.Load(os.Getenv("KERNEL_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load the kernel config: %v", err)
	}

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		Host:        cfg.DB.Host,
		Port:        cfg.DB.Port,
		User:        cfg.DB.User,
		Password:    cfg.DB.Password,
		Database:    cfg.DB.Name,
		MaxSessions: cfg.DB.MaxSessions,
	})
	if err != nil {
		log.Fatalf("failed to connect to the versioned store: %v", err)
	}
	defer st.Close()

	if err := bootstrapStore(ctx, st); err != nil {
		log.Fatalf("failed to bootstrap the store: %v", err)
	}

	repo := items.NewRepo()
	orch := mutation.NewOrchestrator(
		mutation.PoolFromStore(st),
		mutation.NewLifecycle(cfg.Merge.TrunkBranch),
		mutation.NewCoordinator(mutation.DefaultLockName, cfg.Merge.LockTimeout()))

	router := gin.Default()
	router.Use(otelgin.Middleware("kernel-service"))
	routes.SetupRoutes(router, orch, repo, st)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: router,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("starting the kernel server", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		slog.Info("shutting down the kernel server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("kernel server failed: %v", err)
	}
}
