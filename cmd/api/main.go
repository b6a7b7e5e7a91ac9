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
	"github.com/zenpay/payment-gateway/internal/handlers"
	"github.com/zenpay/payment-gateway/internal/listeners"
	"github.com/zenpay/payment-gateway/internal/notifier"
	"github.com/zenpay/payment-gateway/internal/repository"
	"github.com/zenpay/payment-gateway/internal/services"
	"github.com/zenpay/payment-gateway/internal/timeout"
	xhttp "github.com/zenpay/payment-gateway/pkg/http"
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

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

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

	// delayed jobs: this process only schedules and cancels, the worker
	// binary polls and fires them
	delayedQueue := timeout.NewDelayedQueue(redisAdap, timeout.QueueConfig{
		PollInterval:   config.Get().TimeoutPollInterval,
		BatchSize:      config.Get().TimeoutBatchSize,
		MaxRetries:     config.Get().TimeoutMaxRetries,
		RetryBackoff:   config.Get().TimeoutRetryBase,
		HandlerTimeout: config.Get().TimeoutHandler,
	})

	transactionRepo := repository.NewTransactionRepository(db)
	eventRepo := repository.NewTransactionEventRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	userRepo := repository.NewUserRepository(db)
	paymentMethodRepo := repository.NewPaymentMethodRepository(db)

	bus := events.NewBus()

	// services
	transactionService := services.NewTransactionService(transactionRepo, eventRepo, refundRepo, userRepo, paymentMethodRepo, bus)
	userService := services.NewUserService(userRepo)
	paymentMethodService := services.NewPaymentMethodService(paymentMethodRepo, userRepo)
	healthService := services.NewHealthService()

	// lifecycle listeners
	listeners.NewOrchestration(transactionService, userRepo, payos, bus).Register(bus)
	listeners.NewTimeoutScheduler(delayedQueue, config.Get().PaymentTimeout).Register(bus)
	notifier.New(redisAdap).Register(bus)

	// v1 handlers
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	userHandler := handlers.NewUserHandler(userService)
	paymentMethodHandler := handlers.NewPaymentMethodHandler(paymentMethodService)
	webhookHandler := handlers.NewWebhookHandler(transactionService, userRepo, bus, config.Get().PayOSChecksumKey)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterTransactionRoutes(g, transactionHandler)
	handlers.RegisterUserRoutes(g, userHandler)
	handlers.RegisterPaymentMethodRoutes(g, paymentMethodHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if addr := config.Get().AppDebugMetricsAddr; addr != "" {
		go func() {
			prom.ListenAndServer(addr, config.Get().AppDebugMetricsURI)
		}()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		bus.Wait()
		s.Shutdown()
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
