package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ww-care/bank-data-simulation/internal/loan/application"
	"github.com/ww-care/bank-data-simulation/internal/loan/domain"
	"github.com/ww-care/bank-data-simulation/internal/loan/infrastructure/persistence/mysql"
	redisstore "github.com/ww-care/bank-data-simulation/internal/loan/infrastructure/persistence/redis"
	"github.com/ww-care/bank-data-simulation/internal/loan/infrastructure/publisher"
	http_server "github.com/ww-care/bank-data-simulation/internal/loan/interfaces/http"
	"github.com/ww-care/bank-data-simulation/pkg/cache"
	"github.com/ww-care/bank-data-simulation/pkg/config"
	"github.com/ww-care/bank-data-simulation/pkg/db"
	"github.com/ww-care/bank-data-simulation/pkg/logger"
	"github.com/ww-care/bank-data-simulation/pkg/metrics"
	"github.com/ww-care/bank-data-simulation/pkg/middleware"
	"github.com/ww-care/bank-data-simulation/pkg/mq"
	"github.com/ww-care/bank-data-simulation/pkg/ratelimit"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/loansim/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}

	// 2. Logger
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}
	ctx := context.Background()
	logger.Info(ctx, "Starting loan data simulation service",
		"service", cfg.ServiceName, "env", cfg.Environment)

	// 3. Database
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		panic(fmt.Sprintf("connect db failed: %v", err))
	}
	defer database.Close()

	loanRepo := mysql.NewLoanRepository(database)
	if err := loanRepo.AutoMigrate(); err != nil {
		panic(fmt.Sprintf("migrate db failed: %v", err))
	}
	batchRepo := mysql.NewBatchRepository(database)

	// 4. Redis
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		panic(fmt.Sprintf("connect redis failed: %v", err))
	}
	defer redisCache.Close()
	progressStore := redisstore.NewBatchProgressStore(redisCache)

	// 5. Kafka（未配置 broker 时退化为空发布器）
	var eventPublisher domain.EventPublisher = publisher.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
		})
		if err != nil {
			panic(fmt.Sprintf("connect kafka failed: %v", err))
		}
		defer producer.Close()
		eventPublisher = publisher.NewKafkaEventPublisher(producer)
	} else {
		logger.Warn(ctx, "Kafka brokers not configured, events will be dropped")
	}

	// 6. Metrics
	var collector metrics.MetricsCollector
	if cfg.Metrics.Enabled {
		m := metrics.New("loansim")
		if err := m.Register(); err != nil {
			panic(fmt.Sprintf("register metrics failed: %v", err))
		}
		collector = metrics.NewDefaultMetricsCollector(m)
		if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			panic(fmt.Sprintf("start metrics server failed: %v", err))
		}
	}

	// 7. Application
	appService := application.NewService(loanRepo, batchRepo, progressStore, eventPublisher, collector, cfg.Generator)

	// 8. HTTP
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.GinLoggingMiddleware())
	r.Use(middleware.GinRecoveryMiddleware())
	r.Use(middleware.GinCORSMiddleware())
	if collector != nil {
		r.Use(middleware.GinMetricsMiddleware(collector))
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())
		r.Use(middleware.RateLimitMiddleware(limiter, cfg.RateLimit))
	}
	http_server.NewHandler(r, appService)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 9. Start
	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	// 10. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown failed", "error", err)
	}
	logger.Info(ctx, "Server exited")
}
