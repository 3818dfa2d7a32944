// Package app wires the coupon API service together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/couponables/internal/api"
	"github.com/xenking/couponables/internal/domain/coupon"
	"github.com/xenking/couponables/pkg/health"
	"github.com/xenking/couponables/pkg/httpmiddleware"
)

const serviceName = "coupon-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store))

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	st, err := openStores(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.AdminKey != "" {
		if err := st.SeedAdminKey(ctx, []byte(cfg.APIKeyPepper), cfg.AdminKey); err != nil {
			return errors.Wrap(err, "seed admin key")
		}
	}

	events, err := openEvents(ctx, lg, m.MeterProvider(), cfg.Notify, healthSvc)
	if err != nil {
		return err
	}

	engine, err := newEngine(lg, m.TracerProvider(), cfg, st, events)
	if err != nil {
		return err
	}

	h := api.NewHandler(api.HandlerConfig{
		Pepper:     []byte(cfg.APIKeyPepper),
		CodeLength: cfg.Generator.CodeLength,
	}, engine, st.apikeys)
	router := h.Router()
	healthSvc.Mount(router)
	routeFinder := httpmiddleware.MakeRouteFinder(router)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", api.APIKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.HeaderOrIP(api.APIKeyHeader),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		events.Close()
		healthSvc.Stop()
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newEngine builds the traced coupon engine on top of the stores.
func newEngine(lg *zap.Logger, tp trace.TracerProvider, cfg *Config, st *stores, events coupon.Notifier) (coupon.Engine, error) {
	calc, err := cfg.Calc.Build()
	if err != nil {
		return nil, err
	}
	svc := coupon.NewService(st.coupons, st.redemptions,
		coupon.WithNotifier(events),
		coupon.WithCalculator(coupon.NewCalculator(calc)),
		coupon.WithLogger(lg.Named("coupon")),
		coupon.WithMaxAttempts(cfg.Generator.MaxAttempts),
	)
	return coupon.NewTraced(svc, tp), nil
}
