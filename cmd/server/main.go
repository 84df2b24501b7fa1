// Command server runs the platewatch gateway: notification admission for
// detected violations and the media relay to the detection backend.
// Dependencies are constructed once here and injected; business logic lives
// in the internal packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"platewatch/internal/audit"
	"platewatch/internal/notify/twilio"
	"platewatch/internal/platform/config"
	"platewatch/internal/platform/httpserver"
	"platewatch/internal/platform/logger"
	"platewatch/internal/platform/metrics"
	platformmw "platewatch/internal/platform/middleware"
	platformpg "platewatch/internal/platform/postgres"
	platformredis "platewatch/internal/platform/redis"
	"platewatch/internal/relay"
	relayhandler "platewatch/internal/relay/handler"
	httptransport "platewatch/internal/transport/http"
	violationhandler "platewatch/internal/violation/handler"
	"platewatch/internal/violation/ports"
	"platewatch/internal/violation/service"
	memorystore "platewatch/internal/violation/store/memory"
	pgstore "platewatch/internal/violation/store/postgres"
	redisstore "platewatch/internal/violation/store/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "platewatch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	auditPub := buildAuditPublisher(cfg, log)
	defer auditPub.Close()

	notifier := twilio.New(twilio.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromPhone:  cfg.TwilioFromPhone,
		Timeout:    cfg.ProviderTimeout,
	})

	admission, err := service.New(store, notifier,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(auditPub),
		service.WithPolicy(service.Policy(cfg.DuplicatePolicy)),
		service.WithDailyLimit(cfg.DailySMSLimit),
	)
	if err != nil {
		return fmt.Errorf("build admission service: %w", err)
	}

	streamer, err := relay.New(cfg.DetectorURL,
		relay.WithLogger(log),
		relay.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("build relay streamer: %w", err)
	}

	var limiter *platformmw.ClientLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = platformmw.NewClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		limiter.StartJanitor(ctx)
	}

	router := httptransport.NewRouter(log, limiter, store.Health,
		violationhandler.New(admission, cfg.DailySMSLimit, log),
		relayhandler.New(streamer, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting platewatch gateway",
		"addr", cfg.Addr,
		"store_driver", cfg.StoreDriver,
		"duplicate_policy", cfg.DuplicatePolicy,
		"daily_sms_limit", cfg.DailySMSLimit,
		"detector_url", cfg.DetectorURL,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStore selects the record store backend from configuration.
func buildStore(ctx context.Context, cfg config.Config) (ports.RecordStore, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		return memorystore.New(), func() {}, nil
	case "redis":
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return redisstore.New(client.Client), func() { _ = client.Close() }, nil
	case "postgres":
		db, err := platformpg.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return pgstore.New(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// buildAuditPublisher prefers Kafka when brokers are configured and falls
// back to the structured log.
func buildAuditPublisher(cfg config.Config, log *slog.Logger) audit.Publisher {
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err == nil {
			log.Info("audit events publishing to kafka",
				"brokers", cfg.KafkaBrokers,
				"topic", cfg.KafkaTopic,
			)
			return pub
		}
		log.Warn("kafka audit publisher unavailable, falling back to log",
			"error", err.Error(),
		)
	}
	return audit.NewLogPublisher(log)
}
