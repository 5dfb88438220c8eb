package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	ShipBox  ShipBoxConfig  `yaml:"shipbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (c DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	ShipmentEventsTopicName string `yaml:"shipment_events_topic_name"`
	StatusReportedTopicName string `yaml:"status_reported_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ShipBoxConfig struct {
	HTTPAddr      string `yaml:"http_addr"`
	ConsumerGroup string `yaml:"consumer_group"`

	VolumeWeightDivisor int64 `yaml:"volume_weight_divisor"`

	UserShipmentsTTLSeconds   int `yaml:"user_shipments_ttl_seconds"`
	ShipmentDetailsTTLSeconds int `yaml:"shipment_details_ttl_seconds"`
	QuotationTTLSeconds       int `yaml:"quotation_ttl_seconds"`
	DependencyTimeoutMs       int `yaml:"dependency_timeout_ms"`

	TokenSecret     string `yaml:"token_secret"`
	TokenTTLSeconds int    `yaml:"token_ttl_seconds"`
	// nil means true: an unreachable revocation store lets valid tokens through.
	RevocationFailOpen *bool `yaml:"revocation_fail_open"`

	RateLimitPerWindow     int `yaml:"rate_limit_per_window"`
	AuthRateLimitPerWindow int `yaml:"auth_rate_limit_per_window"`
	RateLimitWindowSeconds int `yaml:"rate_limit_window_seconds"`

	TrackingNumberPrefix   string `yaml:"tracking_number_prefix"`
	TrackingNumberAttempts int    `yaml:"tracking_number_attempts"`

	// Tariffs are upserted at startup.
	Tariffs []TariffSeed `yaml:"tariffs"`
}

type TariffSeed struct {
	Origin      string `yaml:"origin"`
	Destination string `yaml:"destination"`
	PricePerKg  string `yaml:"price_per_kg"`
}

// WithDefaults fills every unset field.
func (c ShipBoxConfig) WithDefaults() ShipBoxConfig {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "shipping-api"
	}
	if c.VolumeWeightDivisor <= 0 {
		c.VolumeWeightDivisor = 2500
	}
	if c.UserShipmentsTTLSeconds <= 0 {
		c.UserShipmentsTTLSeconds = 300
	}
	if c.ShipmentDetailsTTLSeconds <= 0 {
		c.ShipmentDetailsTTLSeconds = 600
	}
	if c.QuotationTTLSeconds <= 0 {
		c.QuotationTTLSeconds = 1800
	}
	if c.DependencyTimeoutMs <= 0 {
		c.DependencyTimeoutMs = 3000
	}
	if c.TokenTTLSeconds <= 0 {
		c.TokenTTLSeconds = 900
	}
	if c.RevocationFailOpen == nil {
		failOpen := true
		c.RevocationFailOpen = &failOpen
	}
	if c.RateLimitPerWindow <= 0 {
		c.RateLimitPerWindow = 100
	}
	if c.AuthRateLimitPerWindow <= 0 {
		c.AuthRateLimitPerWindow = 10
	}
	if c.RateLimitWindowSeconds <= 0 {
		c.RateLimitWindowSeconds = 900
	}
	if c.TrackingNumberPrefix == "" {
		c.TrackingNumberPrefix = "ENV"
	}
	if c.TrackingNumberAttempts <= 0 {
		c.TrackingNumberAttempts = 5
	}
	return c
}

func (c ShipBoxConfig) UserShipmentsTTL() time.Duration {
	return time.Duration(c.UserShipmentsTTLSeconds) * time.Second
}

func (c ShipBoxConfig) ShipmentDetailsTTL() time.Duration {
	return time.Duration(c.ShipmentDetailsTTLSeconds) * time.Second
}

func (c ShipBoxConfig) QuotationTTL() time.Duration {
	return time.Duration(c.QuotationTTLSeconds) * time.Second
}

func (c ShipBoxConfig) DependencyTimeout() time.Duration {
	return time.Duration(c.DependencyTimeoutMs) * time.Millisecond
}

func (c ShipBoxConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

func (c ShipBoxConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func (c ShipBoxConfig) FailOpen() bool {
	return c.RevocationFailOpen == nil || *c.RevocationFailOpen
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
