package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the dispatcher service.
type Config struct {
	LogLevel      string
	PostgresDSN   string
	WhatsAppURL   string
	WhatsAppToken string
	TickInterval  time.Duration
	BatchSize     int
	SendTimeout   time.Duration
	MetricsAddr   string
	OTelEndpoint  string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:      v.GetString("log_level"),
		PostgresDSN:   v.GetString("postgres_dsn"),
		WhatsAppURL:   v.GetString("whatsapp_url"),
		WhatsAppToken: v.GetString("whatsapp_token"),
		TickInterval:  v.GetDuration("tick_interval"),
		BatchSize:     v.GetInt("batch_size"),
		SendTimeout:   v.GetDuration("send_timeout"),
		MetricsAddr:   v.GetString("metrics_addr"),
		OTelEndpoint:  v.GetString("otel_endpoint"),
	}
}
