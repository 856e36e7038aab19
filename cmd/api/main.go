package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/amerta-coffee/amerta-coffee-api/api/routes"
	"github.com/amerta-coffee/amerta-coffee-api/internal/address"
	"github.com/amerta-coffee/amerta-coffee-api/internal/cart"
	"github.com/amerta-coffee/amerta-coffee-api/internal/checkout"
	"github.com/amerta-coffee/amerta-coffee-api/internal/inventory"
	"github.com/amerta-coffee/amerta-coffee-api/internal/invoice"
	"github.com/amerta-coffee/amerta-coffee-api/internal/orders"
	product "github.com/amerta-coffee/amerta-coffee-api/internal/products"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/config"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/db"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/logger"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/metrics"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/migrate"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/outbox"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	conn := dbClient.DB()
	cartRepo := cart.NewRepository(conn)
	productRepo := product.NewRepository(conn)

	cartService, err := cart.NewService(cartRepo, dbClient, productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		TX:                 dbClient,
		Carts:              cartRepo,
		Addresses:          address.NewRepository(conn),
		Products:           productRepo,
		Inventory:          inventory.NewRepository(conn),
		Orders:             orders.NewRepository(conn),
		Invoices:           invoice.NewGenerator(),
		Outbox:             outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:            metrics.NewCheckout(registry),
		Logger:             logg,
		InvoiceMaxAttempts: cfg.Checkout.InvoiceMaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	addressService, err := address.NewService(address.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: http.TimeoutHandler(
			routes.NewRouter(cfg, logg, dbClient, redisClient, registry, metrics.NewServer(registry), routes.Services{
				Cart:     cartService,
				Checkout: checkoutService,
				Orders:   ordersService,
				Address:  addressService,
			}),
			cfg.App.RequestTimeout,
			`{"error":{"code":"INTERNAL_ERROR","message":"request timed out"}}`,
		),
		ReadHeaderTimeout: cfg.App.RequestTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
		defer cancel()
		logg.Info(ctx, "api server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
