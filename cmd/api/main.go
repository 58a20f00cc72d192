package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/cash-forecast/internal/config"
	"github.com/Dan9191/cash-forecast/internal/handler"
	"github.com/Dan9191/cash-forecast/internal/integrations/fx"
	"github.com/Dan9191/cash-forecast/internal/loader"
	"github.com/Dan9191/cash-forecast/internal/metrics"
	"github.com/Dan9191/cash-forecast/internal/report"
	"github.com/Dan9191/cash-forecast/internal/repository"
	"github.com/Dan9191/cash-forecast/internal/scheduler"
	"github.com/Dan9191/cash-forecast/internal/service"
	"github.com/Dan9191/cash-forecast/internal/utils/email"
)

const (
	scheduledRunTimeout = 5 * time.Minute
	shutdownTimeout     = 15 * time.Second
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	repo := repository.NewRepository(db)
	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = repo.Migrate(migrateCtx)
	cancel()
	if err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize layers
	m := metrics.NewMetrics()
	httpClient := &http.Client{Timeout: cfg.RateTimeout}
	rates := fx.NewProvider(logger, m, fx.DefaultRetryConfig(),
		fx.NewExchangeRateClient(cfg.ExchangeRateURL, httpClient, logger),
		fx.NewECBClient(cfg.ECBURL, httpClient, logger),
		fx.NewCBRClient(cfg.CBRURL, httpClient, logger),
	)

	opts := []service.Option{service.WithReports(report.NewWriter(cfg.OutputDir, cfg.ReportSigningKey))}
	if cfg.AlertsEnabled() {
		opts = append(opts, service.WithAlerter(email.NewSender(cfg, logger)))
	} else {
		logger.Info("Critical-day alerts disabled: SMTP_HOST or ALERT_RECIPIENTS not set")
	}
	svc := service.NewService(repo, rates, loader.NewLoader(cfg.DataDir, logger), m, logger, cfg, opts...)
	h := handler.NewHandler(svc, logger)

	// Schedule the daily forecast
	sched := scheduler.New(logger)
	dailyJob := scheduler.NewDailyForecastJob(svc, scheduledRunTimeout, logger)
	if err := sched.AddJob(cfg.ForecastCron, dailyJob); err != nil {
		logger.Fatalf("Failed to schedule forecast: %v", err)
	}
	sched.Start()
	defer sched.Stop()
	logger.Infof("Scheduler running %d job(s)", sched.Entries())
	if cfg.ForecastOnStart {
		go func() {
			if err := sched.RunNow(dailyJob); err != nil {
				logger.Errorf("Startup forecast failed: %v", err)
			}
		}()
	}

	// Setup router
	r := handler.NewRouter(h, cfg, promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
}
