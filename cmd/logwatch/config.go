package main

import (
	"time"

	"github.com/tinytelemetry/logwatch/internal/analytics"
	"github.com/tinytelemetry/logwatch/internal/broadcast"
	"github.com/tinytelemetry/logwatch/internal/linein"
	"github.com/tinytelemetry/logwatch/internal/model"
)

const (
	defaultBindHost         = "127.0.0.1"
	defaultAPIPort          = 3000
	defaultGRPCPort         = 4317
	defaultTCPPort          = 4000
	defaultFlushThreshold   = model.DefaultFlushThreshold
	defaultFlushInterval    = model.DefaultFlushInterval
	defaultFlushQueueSize   = 64
	defaultFlushRetries     = 0
	defaultSubscriberBuffer = broadcast.DefaultQueueSize
	defaultIntakeBuffer     = linein.DefaultIntakeBuffer
	defaultKafkaTopic       = "logwatch.records"
	defaultLogLevel         = "info"
	defaultLogFormat        = "console"
	defaultSQLTimeout       = analytics.DefaultTimeout
	defaultSQLMaxRows       = analytics.DefaultMaxRows
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Host             string        `mapstructure:"host"`
	APIPort          int           `mapstructure:"api-port"`
	APIAddr          string        `mapstructure:"api-addr"`
	GRPCEnabled      bool          `mapstructure:"grpc-enabled"`
	GRPCPort         int           `mapstructure:"grpc-port"`
	GRPCAddr         string        `mapstructure:"grpc-addr"`
	TCPEnabled       bool          `mapstructure:"tcp-enabled"`
	TCPPort          int           `mapstructure:"tcp-port"`
	TCPAddr          string        `mapstructure:"tcp-addr"`
	LineTenant       string        `mapstructure:"line-tenant"`
	TCPTenant        string        `mapstructure:"tcp-tenant"`
	StdinTenant      string        `mapstructure:"stdin-tenant"`
	IntakeBuffer     int           `mapstructure:"intake-buffer-size"`
	DataDir          string        `mapstructure:"data-dir"`
	FlushThreshold   int           `mapstructure:"flush-threshold"`
	FlushInterval    time.Duration `mapstructure:"flush-interval"`
	FlushQueueSize   int           `mapstructure:"flush-queue-size"`
	FlushRetries     int           `mapstructure:"flush-retries"`
	SubscriberBuffer int           `mapstructure:"subscriber-buffer"`
	KeysFile         string        `mapstructure:"keys-file"`
	KafkaBrokers     []string      `mapstructure:"kafka-brokers"`
	KafkaTopic       string        `mapstructure:"kafka-topic"`
	LogLevel         string        `mapstructure:"log-level"`
	LogFormat        string        `mapstructure:"log-format"`
	SQLTimeout       time.Duration `mapstructure:"sql-timeout"`
	SQLMaxRows       int           `mapstructure:"sql-max-rows"`
	ConfigPath       string        `mapstructure:"-"` // not from config file
}
