package config

import (
	"github.com/spf13/viper"
)

// Config holds typed configuration for the scanner service.
type Config struct {
	LogLevel     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers string
	CRMBaseURL   string
	ContentURL   string
	ContentToken string
	ScanCron     string
	CooldownDays int
	MetricsAddr  string
	OTelEndpoint string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:     v.GetString("log_level"),
		PostgresDSN:  v.GetString("postgres_dsn"),
		RedisAddr:    v.GetString("redis_addr"),
		KafkaBrokers: v.GetString("kafka_brokers"),
		CRMBaseURL:   v.GetString("crm_base_url"),
		ContentURL:   v.GetString("content_url"),
		ContentToken: v.GetString("content_token"),
		ScanCron:     v.GetString("scan_cron"),
		CooldownDays: v.GetInt("cooldown_days"),
		MetricsAddr:  v.GetString("metrics_addr"),
		OTelEndpoint: v.GetString("otel_endpoint"),
	}
}
