package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blockberries/govledger/app"
	"github.com/blockberries/govledger/config"
	ledgergrpc "github.com/blockberries/govledger/grpc"
	"github.com/blockberries/govledger/log"
	"github.com/blockberries/govledger/store"
)

func newServeCmd() *cobra.Command {
	var configPaths []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configPaths)
			if err != nil {
				return err
			}
			if err := log.InitLoggers(cfg.Log, "app", "server", "grpc", "store"); err != nil {
				return errors.Wrap(err, "failed to init loggers")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringSliceVarP(&configPaths, "config", "c", nil, "config file, may be repeated")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	programID, err := cfg.ProgramID()
	if err != nil {
		return err
	}
	backend, err := store.Open(cfg.Store)
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.L().Error("failed to close store", zap.Error(err))
		}
	}()

	ledgerApp := app.New(programID, backend, app.WithRegisterer(prometheus.DefaultRegisterer))
	gs := ledgergrpc.NewGRPCServer(ledgerApp).NewServer()

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", cfg.GRPC.Address)
	}
	errc := make(chan error, 2)
	go func() { errc <- gs.Serve(lis) }()

	var metricsSrv *http.Server
	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errc <- errors.Wrap(err, "metrics server")
			}
		}()
	}

	log.L().Info("govledgerd started",
		zap.String("grpc", lis.Addr().String()),
		zap.String("metrics", cfg.Metrics.Address),
		zap.String("store", cfg.Store.Backend),
		zap.Stringer("program", programID))

	select {
	case <-ctx.Done():
		log.L().Info("shutting down")
	case err = <-errc:
		log.L().Error("server stopped", zap.Error(err))
	}

	gs.GracefulStop()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return err
}
