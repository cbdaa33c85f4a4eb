package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	// Application
	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/application/usecase"

	// Domain
	"github.com/dreschagin/vitals-bridge/internal/domain/repository"
	"github.com/dreschagin/vitals-bridge/internal/domain/service"

	// Infrastructure
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/awsconfig"
	redisCache "github.com/dreschagin/vitals-bridge/internal/infrastructure/cache/redis"
	natsPublisher "github.com/dreschagin/vitals-bridge/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/vitals-bridge/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/observability/cloudwatch"
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/persistence/memory"
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/persistence/postgres"
	s3storage "github.com/dreschagin/vitals-bridge/internal/infrastructure/storage/s3"

	// Interfaces
	httpInterface "github.com/dreschagin/vitals-bridge/internal/interfaces/http"
	"github.com/dreschagin/vitals-bridge/internal/interfaces/http/handler"

	// Shared
	"github.com/dreschagin/vitals-bridge/pkg/config"
	"github.com/dreschagin/vitals-bridge/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализируем logger
	log := logger.New(cfg.Logging.Level)
	log.Info("Starting vitals host")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var readiness []httpInterface.ReadinessCheck

	// 3. Хранилище метрик: PostgreSQL или память
	var vitalRepository repository.VitalRepository
	if cfg.Database.Enabled {
		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			log.Error("Failed to connect to database", err)
			os.Exit(1)
		}
		defer db.Close()

		// Настраиваем connection pool
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

		if err := db.PingContext(ctx); err != nil {
			log.Error("Failed to ping database", err)
			os.Exit(1)
		}

		pgRepository := postgres.NewPostgresVitalRepository(db)
		if err := pgRepository.EnsureSchema(ctx); err != nil {
			log.Error("Failed to prepare database schema", err)
			os.Exit(1)
		}
		vitalRepository = pgRepository
		readiness = append(readiness, httpInterface.ReadinessCheck{Name: "postgres", Check: db.PingContext})
		log.Info("Database connected successfully")
	} else {
		vitalRepository = memory.NewVitalRepository()
		log.Warn("PostgreSQL is disabled, vitals are kept in memory only")
	}

	// 4. Опциональные приемники

	// Redis cache
	var cache port.Cache
	if cfg.Redis.Enabled {
		rc, err := redisCache.NewRedisCache(redisCache.Options{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			TTL:          cfg.Redis.TTL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("Redis is unavailable, running without cache", "error", err.Error())
		} else {
			defer rc.Close()
			cache = rc
			readiness = append(readiness, httpInterface.ReadinessCheck{Name: "redis", Check: rc.Ping})
			log.Info("Redis cache connected", "host", cfg.Redis.Host)
		}
	}

	// NATS JetStream
	var eventPublisher port.EventPublisher
	var natsPub *natsPublisher.NATSPublisher
	if cfg.NATS.Enabled {
		natsPub, err = natsPublisher.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log)
		if err != nil {
			log.Warn("NATS is unavailable, vitals events will not be published", "error", err.Error())
		} else {
			eventPublisher = natsPub
		}
	}

	// CloudWatch
	var metricsPublisher port.MetricsPublisher
	var cwMetrics *cloudwatch.MetricsPublisher
	if cfg.CloudWatch.MetricsEnabled {
		cwMetrics, err = cloudwatch.NewMetricsPublisher(ctx, cloudwatch.MetricsPublisherConfig{
			AWS:               cloudWatchAWS(cfg.CloudWatch),
			Namespace:         cfg.CloudWatch.Namespace,
			DefaultDimensions: map[string]string{"Environment": cfg.CloudWatch.Environment},
			BufferSize:        cfg.CloudWatch.BufferSize,
			FlushInterval:     cfg.CloudWatch.FlushInterval,
			StorageResolution: cfg.CloudWatch.StorageResolution,
		}, log)
		if err != nil {
			log.Warn("CloudWatch metrics are unavailable", "error", err.Error())
		} else {
			metricsPublisher = cwMetrics
			log.Info("CloudWatch metrics enabled", "namespace", cfg.CloudWatch.Namespace)
		}
	}

	var cwLogs *cloudwatch.LogsPublisher
	if cfg.CloudWatch.LogsEnabled {
		cwLogs, err = cloudwatch.NewLogsPublisher(ctx, cloudwatch.LogsPublisherConfig{
			AWS:           cloudWatchAWS(cfg.CloudWatch),
			LogGroupName:  cfg.CloudWatch.LogGroupName,
			LogStreamName: cfg.CloudWatch.LogStreamName,
			BufferSize:    cfg.CloudWatch.BufferSize,
			FlushInterval: cfg.CloudWatch.FlushInterval,
			AutoCreate:    true,
		})
		if err != nil {
			log.Warn("CloudWatch logs are unavailable", "error", err.Error())
		} else {
			log.SetLogPublisher(cwLogs)
			log.Info("CloudWatch logs enabled", "log_group", cfg.CloudWatch.LogGroupName)
		}
	}

	// S3 архив envelopes
	var archive port.EnvelopeArchive
	if cfg.S3.Enabled {
		s3Archive, err := s3storage.NewEnvelopeArchive(ctx, s3storage.Config{
			AWS: awsconfig.Options{
				Region:          cfg.S3.Region,
				Endpoint:        cfg.S3.Endpoint,
				AccessKeyID:     cfg.S3.AccessKeyID,
				SecretAccessKey: cfg.S3.SecretAccessKey,
			},
			Bucket:       cfg.S3.Bucket,
			UsePathStyle: cfg.S3.UsePathStyle,
			URLMode:      s3storage.URLMode(cfg.S3.URLMode),
			PresignedTTL: cfg.S3.PresignedTTL,
		})
		if err != nil {
			log.Error("Failed to initialize envelope archive", err)
			os.Exit(1)
		}
		archive = s3Archive
	} else {
		log.Warn("S3 archive is disabled, raw envelopes are not kept")
	}

	// Prometheus
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineMetrics := metrics.New(registry)

	// WebSocket Hub
	hub := wsInfra.NewHub(log)

	// 5. Dependency Injection - Application Layer (Use Cases)

	deliverEnvelopeUC := usecase.NewDeliverEnvelopeUseCase(
		vitalRepository,
		cache,
		eventPublisher,
		metricsPublisher,
		archive,
		hub,
		pipelineMetrics,
		cfg.S3.KeyPrefix,
		log,
	)
	trackConsoleUC := usecase.NewTrackConsoleMessageUseCase(deliverEnvelopeUC, log)
	getLatestUC := usecase.NewGetLatestVitalsUseCase(vitalRepository, cache, log)
	getHistoryUC := usecase.NewGetVitalsHistoryUseCase(
		vitalRepository,
		service.NewVitalStats(),
		cache,
		cfg.Vitals.HistoryMaxDuration,
		log,
	)

	// 6. Dependency Injection - Interfaces Layer (HTTP Handlers)

	authConfig := httpInterface.AuthConfig(cfg.Security, pipelineMetrics)

	router := httpInterface.NewRouter(
		handler.NewVitalsAPIHandler(getLatestUC, getHistoryUC, archive, cfg.Vitals.HistoryMaxDuration, log),
		handler.NewConsoleAPIHandler(trackConsoleUC, cfg.Security.MaxIngestBodySize, log),
		handler.NewWebSocketHandler(hub, cfg.Security.AllowedOrigins, authConfig, log),
		handler.NewPageAgentHandler(
			ctx,
			deliverEnvelopeUC,
			trackConsoleUC,
			pipelineMetrics,
			pipelineMetrics,
			cfg.Vitals.MaxBufferedEntries,
			cfg.Security.AllowedOrigins,
			authConfig,
			log,
		),
		pipelineMetrics,
		registry,
		readiness,
		cfg.Security,
		log,
	)
	defer router.Close()

	// 7. Запускаем фоновые процессы

	go hub.Run(ctx)
	log.Info("WebSocket hub started")

	if cfg.Vitals.RetentionDays > 0 {
		go runRetention(ctx, vitalRepository, cfg.Vitals, log)
	}

	// 8. Настраиваем HTTP сервер

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Канал для получения сигналов ОС
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", err)
			os.Exit(1)
		}
	}()

	// 9. Ожидаем сигнал для graceful shutdown

	<-sigChan
	log.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", err)
	}

	// Закрываем соединения агентов и останавливаем hub
	cancel()

	// 10. Сбрасываем буферы внешних приемников
	if cwMetrics != nil {
		if err := cwMetrics.Close(shutdownCtx); err != nil {
			log.Error("Failed to flush CloudWatch metrics", err)
		}
	}
	if natsPub != nil {
		if err := natsPub.Close(); err != nil {
			log.Error("Failed to close NATS publisher", err)
		}
	}
	if cwLogs != nil {
		log.SetLogPublisher(nil)
		if err := cwLogs.Close(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush CloudWatch logs: %v\n", err)
		}
		if dropped := cwLogs.Dropped(); dropped > 0 {
			log.Warn("CloudWatch log entries dropped", "count", dropped)
		}
	}

	log.Info("Server stopped gracefully")
}

func cloudWatchAWS(cfg config.CloudWatchConfig) awsconfig.Options {
	return awsconfig.Options{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	}
}

// runRetention периодически удаляет записи старше срока хранения
func runRetention(ctx context.Context, repo repository.VitalRepository, cfg config.VitalsConfig, log *logger.Logger) {
	interval := cfg.RetentionInterval
	if interval <= 0 {
		interval = time.Hour
	}
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("Retention worker started", "retention_days", cfg.RetentionDays, "interval", interval.String())

	for {
		select {
		case <-ticker.C:
			deleted, err := repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				log.Error("Failed to delete expired vitals", err)
				continue
			}
			if deleted > 0 {
				log.Info("Expired vitals deleted", "count", deleted)
			}
		case <-ctx.Done():
			log.Info("Retention worker stopped")
			return
		}
	}
}
