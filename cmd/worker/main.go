package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zenpay/payment-gateway/internal/config"
	"github.com/zenpay/payment-gateway/internal/events"
	gateway "github.com/zenpay/payment-gateway/internal/gateways"
	"github.com/zenpay/payment-gateway/internal/notifier"
	"github.com/zenpay/payment-gateway/internal/repository"
	"github.com/zenpay/payment-gateway/internal/services"
	"github.com/zenpay/payment-gateway/internal/timeout"
	"github.com/zenpay/payment-gateway/pkg/logger"
	"github.com/zenpay/payment-gateway/pkg/pg"
	"github.com/zenpay/payment-gateway/pkg/prom"
	"github.com/zenpay/payment-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// The worker polls the delayed timeout jobs and fails transactions whose
// payment window expired. It shares the redis keys with the api process, which
// schedules and cancels the jobs.
func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	payos, err := gateway.NewClient(&gateway.Config{
		BaseURL:     config.Get().PayOSBaseUrl,
		ClientID:    config.Get().PayOSClientID,
		APIKey:      config.Get().PayOSAPIKey,
		ChecksumKey: config.Get().PayOSChecksumKey,
		ReturnURL:   config.Get().PayOSReturnUrl,
		CancelURL:   config.Get().PayOSCancelUrl,
		Timeout:     config.Get().PayOSTimeout,
	})
	if err != nil {
		logger.Error("failed to create provider client", "error", err)
		return
	}

	transactionRepo := repository.NewTransactionRepository(db)
	eventRepo := repository.NewTransactionEventRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	userRepo := repository.NewUserRepository(db)
	paymentMethodRepo := repository.NewPaymentMethodRepository(db)

	bus := events.NewBus()
	notifier.New(redisAdap).Register(bus)

	transactionService := services.NewTransactionService(transactionRepo, eventRepo, refundRepo, userRepo, paymentMethodRepo, bus)
	processor := timeout.NewProcessor(transactionRepo, transactionService, userRepo, payos, bus)

	delayedQueue := timeout.NewDelayedQueue(redisAdap, timeout.QueueConfig{
		PollInterval:   config.Get().TimeoutPollInterval,
		BatchSize:      config.Get().TimeoutBatchSize,
		MaxRetries:     config.Get().TimeoutMaxRetries,
		RetryBackoff:   config.Get().TimeoutRetryBase,
		HandlerTimeout: config.Get().TimeoutHandler,
	})

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	if err := delayedQueue.Run(processor.Process); err != nil {
		logger.Error("failed to start the timeout worker", "error", err)
		return
	}
	logger.Info("timeout worker running",
		"poll_interval", config.Get().TimeoutPollInterval.String(),
		"payment_timeout", config.Get().PaymentTimeout.String())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	select {
	case <-c:
		if err := delayedQueue.Stop(30 * time.Second); err != nil {
			logger.Error("timeout worker did not stop cleanly", "error", err)
		}
		bus.Wait()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
