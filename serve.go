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
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/norun9/gomarketplace/cartservice/cart"
	"github.com/norun9/gomarketplace/cartservice/cartstore"
	"github.com/norun9/gomarketplace/cartservice/config"
	"github.com/norun9/gomarketplace/cartservice/logging"
	"github.com/norun9/gomarketplace/cartservice/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the cart HTTP API and the gRPC health check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logging.New(cfg.LogLevel))
		},
	}
}

func openStorage(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (cartstore.IStorage, error) {
	storage, err := cartstore.New(cartstore.Options{
		Backend:   cfg.Storage,
		BuntPath:  cfg.DBPath,
		RedisAddr: cfg.RedisAddr,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}
	if err := storage.Initialize(ctx); err != nil {
		return nil, errors.Wrapf(err, "initialize %s storage", cfg.Storage)
	}
	return storage, nil
}

func serve(parent context.Context, cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeOpts := []cart.Option{
		cart.WithKey(cfg.StorageKey),
		cart.WithLogger(log),
		cart.WithPersistTimeout(cfg.PersistTimeout),
	}
	if cfg.EnableTracing {
		tp, err := initTracerProvider(ctx, cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.WithError(err).Warn("error shutting down tracer provider")
			}
		}()
		mp, err := initMeterProvider(ctx, cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				log.WithError(err).Warn("error shutting down meter provider")
			}
		}()
		storeOpts = append(storeOpts, cart.WithTracerProvider(tp), cart.WithMeterProvider(mp))
		log.WithField("endpoint", cfg.OTLPEndpoint).Info("OpenTelemetry initialized")
	} else {
		log.Info("Tracing disabled.")
	}

	storage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.WithError(err).Warn("error closing storage")
		}
	}()
	log.WithField("backend", cfg.Storage).Info("cart storage initialized")

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return errors.Wrapf(err, "listen on :%s", cfg.GRPCPort)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(grpcServer, services.NewHealthCheckService(storage, log))
	reflection.Register(grpcServer)

	// The store outlives the signal context; it is closed after the servers
	// have drained so in-flight mutations still reach storage.
	store := cart.NewStore(storage, storeOpts...)
	store.Start(context.Background())

	handler := services.NewCartHandler(store, log)
	httpSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(handler.Router(), "cartservice"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpSrv.RegisterOnShutdown(handler.Close)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("cart HTTP API listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve HTTP")
		}
		return nil
	})
	g.Go(func() error {
		log.Infof("gRPC health server listening on %s", lis.Addr())
		return errors.Wrap(grpcServer.Serve(lis), "serve gRPC")
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Received shutdown signal, initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})
	err = g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if cerr := store.Close(closeCtx); cerr != nil {
		log.WithError(cerr).Error("final cart write failed")
	}
	return err
}
