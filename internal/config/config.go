package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Send     SendConfig
	Env      string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds recipient store configuration. Driver is either
// "sqlite" (embedded, the default) or "postgres".
type DatabaseConfig struct {
	Driver   string
	Path     string // sqlite file path
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// RabbitMQConfig holds RabbitMQ configuration
type RabbitMQConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	DispatchQueue string
	ReceiptQueue  string
}

// SendConfig holds batch-send pacing and recovery configuration
type SendConfig struct {
	// PacingInterval is awaited before every dispatch, including the
	// first, to keep pause responsive and avoid carrier-side limits.
	PacingInterval time.Duration
	// GatewayRate is the worker-side sends-per-second ceiling.
	GatewayRate int
	// GatewaySuccessRate is the simulated carrier success probability.
	GatewaySuccessRate float64
	// StaleSendingAfter reverts rows stuck in "sending" back to
	// "pending" after this duration. Zero disables the sweep, matching
	// the reference behavior.
	StaleSendingAfter time.Duration
	// SubscriptionID identifies the SIM/line used for dispatches.
	SubscriptionID int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("BO_DB_DRIVER", "sqlite"),
			Path:     getEnv("BO_SQLITE_PATH", "boomorganized.db"),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "boomorganized"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "boomorganized_db"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:          getEnv("RABBITMQ_HOST", "localhost"),
			Port:          getEnv("RABBITMQ_PORT", "5672"),
			User:          getEnv("RABBITMQ_DEFAULT_USER", "guest"),
			Password:      getEnv("RABBITMQ_DEFAULT_PASS", "guest"),
			DispatchQueue: getEnv("BO_DISPATCH_QUEUE", "bo_dispatches"),
			ReceiptQueue:  getEnv("BO_RECEIPT_QUEUE", "bo_receipts"),
		},
		Send: SendConfig{
			PacingInterval:     getEnvAsDuration("BO_PACING_INTERVAL", 2500*time.Millisecond),
			GatewayRate:        getEnvAsInt("BO_GATEWAY_RATE", 1),
			GatewaySuccessRate: getEnvAsFloat("BO_GATEWAY_SUCCESS_RATE", 0.95),
			StaleSendingAfter:  getEnvAsDuration("BO_STALE_SENDING_AFTER", 0),
			SubscriptionID:     getEnvAsInt("BO_SUBSCRIPTION_ID", 1),
		},
		Env: getEnv("ENV", "development"),
	}

	// Validate required fields
	if config.Database.Driver != "sqlite" && config.Database.Driver != "postgres" {
		return nil, fmt.Errorf("BO_DB_DRIVER must be 'sqlite' or 'postgres', got %q", config.Database.Driver)
	}
	if config.Database.Driver == "postgres" && config.Database.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD is required with the postgres driver")
	}
	if config.Send.PacingInterval < 0 {
		return nil, fmt.Errorf("BO_PACING_INTERVAL must not be negative")
	}
	// rate.NewLimiter(0, 1) blocks Wait forever, silently freezing the gateway
	if config.Send.GatewayRate <= 0 {
		return nil, fmt.Errorf("BO_GATEWAY_RATE must be positive, got %d", config.Send.GatewayRate)
	}

	return config, nil
}

// DriverName returns the database/sql driver name to open
func (c *Config) DriverName() string {
	if c.Database.Driver == "sqlite" {
		return "sqlite"
	}
	return "postgres"
}

// GetDatabaseDSN returns the connection string for the configured driver
func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.Path
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// GetRabbitMQURL returns RabbitMQ connection URL
func (c *Config) GetRabbitMQURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer or returns default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat gets environment variable as float or returns default
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsDuration gets environment variable as duration or returns default
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
