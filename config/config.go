package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Allocation engine tunables.
	DisplacementMargin        int `mapstructure:"DISPLACEMENT_MARGIN"`
	MaxForwardDays            int `mapstructure:"MAX_FORWARD_DAYS"`
	ReallocationWindowMinutes int `mapstructure:"REALLOCATION_WINDOW_MINUTES"`
	ReserveMaxAttempts        int `mapstructure:"RESERVE_MAX_ATTEMPTS"`
	ReserveBackoffBaseMs      int `mapstructure:"RESERVE_BACKOFF_BASE_MS"`
	ReserveBackoffCapMs       int `mapstructure:"RESERVE_BACKOFF_CAP_MS"`

	// Defaults used at slot generation when the schedule omits them.
	DefaultSlotCapacity  int `mapstructure:"DEFAULT_SLOT_CAPACITY"`
	ConsultationDuration int `mapstructure:"CONSULTATION_DURATION"`
	BufferTime           int `mapstructure:"BUFFER_TIME"`

	// Background task cadence.
	SweeperStaleMinutes int `mapstructure:"SWEEPER_STALE_MINUTES"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "opd")
	viper.SetDefault("DISPLACEMENT_MARGIN", 200)
	viper.SetDefault("MAX_FORWARD_DAYS", 30)
	viper.SetDefault("REALLOCATION_WINDOW_MINUTES", 120)
	viper.SetDefault("RESERVE_MAX_ATTEMPTS", 3)
	viper.SetDefault("RESERVE_BACKOFF_BASE_MS", 100)
	viper.SetDefault("RESERVE_BACKOFF_CAP_MS", 1000)
	viper.SetDefault("DEFAULT_SLOT_CAPACITY", 20)
	viper.SetDefault("CONSULTATION_DURATION", 15)
	viper.SetDefault("BUFFER_TIME", 5)
	viper.SetDefault("SWEEPER_STALE_MINUTES", 10)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
