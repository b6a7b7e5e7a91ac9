package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/zenpay/payment-gateway/pkg/logger"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every env-sourced setting of the gateway. Only this struct
// must be used to hold configuration values, no direct access to env, ini or
// any other config source should be made
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"payment_gateway"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`
	AppBaseUrl          string `env:"APP_BASE_URL"`

	HttpListenAddr            string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpBaseRequestUrl        string `env:"HTTP_BASE_REQUEST_URI" validation:"mustExists"`
	HttpServerReadTimeout     int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout    int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	HttpServerReadBufferSize  int    `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int    `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	ProfilerEnable bool `env:"PROFILER_ENABLE"`
	ProfilerPort   int  `env:"PROFILER_PORT"`

	LogLevel []string `env:"LOG_LEVEL"`

	// PayOS-style provider credentials. The checksum key signs outbound
	// requests and verifies inbound webhooks.
	PayOSBaseUrl     string        `env:"PAYOS_BASE_URL"`
	PayOSClientID    string        `env:"PAYOS_CLIENT_ID"`
	PayOSAPIKey      string        `env:"PAYOS_API_KEY"`
	PayOSChecksumKey string        `env:"PAYOS_CHECKSUM_KEY"`
	PayOSReturnUrl   string        `env:"PAYOS_RETURN_URL"`
	PayOSCancelUrl   string        `env:"PAYOS_CANCEL_URL"`
	PayOSTimeout     time.Duration `env:"PAYOS_TIMEOUT" default:"5s"`

	// Timeout-job knobs. PaymentTimeout is how long a customer gets to pay
	// before the transaction is failed.
	PaymentTimeout      time.Duration `env:"PAYMENT_TIMEOUT" default:"15m"`
	TimeoutPollInterval time.Duration `env:"TIMEOUT_POLL_INTERVAL" default:"1s"`
	TimeoutBatchSize    int64         `env:"TIMEOUT_BATCH_SIZE" default:"10"`
	TimeoutMaxRetries   int           `env:"TIMEOUT_MAX_RETRIES" default:"3"`
	TimeoutRetryBase    time.Duration `env:"TIMEOUT_RETRY_BASE" default:"5s"`
	TimeoutHandler      time.Duration `env:"TIMEOUT_HANDLER_TIMEOUT" default:"30s"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
