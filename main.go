package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/imagegen/internal/config"
	"github.com/dmorgan81/imagegen/internal/handler"
	"github.com/dmorgan81/imagegen/internal/inject"
	"github.com/dmorgan81/imagegen/internal/log"
	"github.com/dmorgan81/imagegen/internal/server"
	"github.com/dmorgan81/imagegen/internal/session"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.FromOptions(log.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	ctx := log.NewContext(context.Background(), logger)
	injector := inject.Setup(ctx, cfg)

	if _, ok := os.LookupEnv("AWS_LAMBDA_RUNTIME_API"); ok {
		handler := do.MustInvoke[*handler.Handler](injector)
		lambda.StartWithOptions(handler.Handle, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
			_ = injector.Shutdown()
		}))
		return
	}

	if err := serve(ctx, injector); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, injector *do.Injector) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := do.MustInvoke[*server.Server](injector)
	sessions := do.MustInvoke[*session.Manager](injector)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	g.Go(func() error {
		sessions.Run(gctx, sweepInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.FromContextOrDiscard(ctx).Info("shutting down")
		return injector.Shutdown()
	})
	return g.Wait()
}
