package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	Migrate  bool   `yaml:"migrate"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	HoldTTLMinutes       int    `yaml:"hold_ttl_minutes"`
	TripsCacheTTLSeconds int    `yaml:"trips_cache_ttl_seconds"`
	OrderPrefix          string `yaml:"order_prefix"`
}

func (b BookingConfig) HoldTTL() time.Duration {
	return time.Duration(b.HoldTTLMinutes) * time.Minute
}

func (b BookingConfig) TripsCacheTTL() time.Duration {
	return time.Duration(b.TripsCacheTTLSeconds) * time.Second
}

type WorkerConfig struct {
	HoldSweepSeconds int `yaml:"hold_sweep_seconds"`
}

func (w WorkerConfig) HoldSweepInterval() time.Duration {
	return time.Duration(w.HoldSweepSeconds) * time.Second
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used for every field a file leaves unset.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Address: ":8080", AllowedOrigins: []string{"*"}},
		Database: DatabaseConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "bus_booking",
			SSLMode: "disable",
			Migrate: true,
		},
		// Redis is opt-in: an empty addr disables the trip cache.
		Redis: RedisConfig{},
		Kafka: KafkaConfig{
			BookingTopic: "bookings",
			GroupID:      "bus-booking-notifier",
		},
		Booking: BookingConfig{
			HoldTTLMinutes:       15,
			TripsCacheTTLSeconds: 300,
			OrderPrefix:          "VX",
		},
		Worker: WorkerConfig{HoldSweepSeconds: 60},
		Auth:   AuthConfig{TokenTTLHours: 24},
		Log:    LogConfig{Level: "info"},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Auth.AdminPassword = v
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Booking.HoldTTLMinutes <= 0 {
		return fmt.Errorf("booking.hold_ttl_minutes must be positive")
	}
	if c.Worker.HoldSweepSeconds <= 0 {
		return fmt.Errorf("worker.hold_sweep_seconds must be positive")
	}
	return nil
}
