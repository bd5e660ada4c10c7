package config

import (
	"github.com/spf13/viper"
)

// Config holds typed configuration for the API service.
type Config struct {
	LogLevel     string
	HTTPPort     string
	MetricsAddr  string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers string
	CRMBaseURL   string
	ContentURL   string
	ContentToken string
	CooldownDays int
	AutoSend     bool
	OTelEndpoint string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:     v.GetString("log_level"),
		HTTPPort:     v.GetString("http_port"),
		MetricsAddr:  v.GetString("metrics_addr"),
		PostgresDSN:  v.GetString("postgres_dsn"),
		RedisAddr:    v.GetString("redis_addr"),
		KafkaBrokers: v.GetString("kafka_brokers"),
		CRMBaseURL:   v.GetString("crm_base_url"),
		ContentURL:   v.GetString("content_url"),
		ContentToken: v.GetString("content_token"),
		CooldownDays: v.GetInt("cooldown_days"),
		AutoSend:     v.GetBool("auto_send"),
		OTelEndpoint: v.GetString("otel_endpoint"),
	}
}
