package main

import (
	"context"
	"net/http"
	"time"

	"github.com/clinsys/clinic-services/libs/busx"
	"github.com/clinsys/clinic-services/libs/config"
	"github.com/clinsys/clinic-services/libs/db"
	otelx "github.com/clinsys/clinic-services/libs/otel"
	"github.com/clinsys/clinic-services/libs/runtime"
	"github.com/clinsys/clinic-services/services/records-service/internal/handlers"
	"github.com/clinsys/clinic-services/services/records-service/internal/lookup"
	"github.com/clinsys/clinic-services/services/records-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "records-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	amqpURL, err := config.RequiredString("AMQP_URL")
	if err != nil {
		panic(err)
	}
	bus, err := busx.Open(amqpURL)
	if err != nil {
		logger.Error("bus connection failed", "err", err)
		panic(err)
	}
	defer bus.Close()

	busClient, err := busx.NewClient(bus)
	if err != nil {
		logger.Error("bus client init failed", "err", err)
		panic(err)
	}
	defer func() { _ = busClient.Close() }()

	patients := lookup.NewPatientClient(busClient, logger, config.Seconds("LOOKUP_TIMEOUT_SECONDS", 2))

	server := busx.NewServer(bus, logger, "records")
	handlers.NewRecordHandler(storage.NewRecordRepository(pool), patients).Register(server)
	go server.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "bus", Check: busx.ReadyCheck(bus)},
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("service stopped")
}
