package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	EventBus EventBusConfig
	Ticket   TicketConfig
	Sweeper  SweeperConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type NATSConfig struct {
	URL        string
	StreamName string
	Subject    string
}

// EventBusConfig Kind 可選 memory / redis / nats
type EventBusConfig struct {
	Kind string
}

type TicketConfig struct {
	// 預訂後未付款的保留時間
	ReservationTTL time.Duration
	CodePrefix     string
}

type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

var AppConfig *Config

func LoadConfig() *Config {
	// .env 不存在時沿用環境變數
	_ = godotenv.Load()

	AppConfig = &Config{
		Server:   GetServerConfig(),
		Database: GetDatabaseConfig(),
		Redis:    GetRedisConfig(),
		NATS:     GetNATSConfig(),
		EventBus: EventBusConfig{Kind: getEnv("EVENT_BUS", "memory")},
		Ticket: TicketConfig{
			ReservationTTL: getEnvDuration("TICKET_RESERVATION_TTL", 15*time.Minute),
			CodePrefix:     getEnv("TICKET_CODE_PREFIX", "TKT"),
		},
		Sweeper: SweeperConfig{
			Interval:  getEnvDuration("SWEEPER_INTERVAL", time.Minute),
			BatchSize: getEnvInt("SWEEPER_BATCH_SIZE", 500),
		},
	}

	return AppConfig
}

func LoadTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8081"},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5433", // 測試 DB 用 5433 port
			User:     "postgres",
			Password: "postgres",
			DBName:   "test_db",
			SSLMode:  "disable",
			MaxConns: 10,
			MinConns: 2,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     "6380", // 測試 Redis 用 6380 port
			Password: "",
			DB:       1,
		},
		NATS:     NATSConfig{URL: "nats://localhost:4223", StreamName: "TOURNAMENT_EVENTS_TEST", Subject: "tournament.events.test"},
		EventBus: EventBusConfig{Kind: "memory"},
		Ticket: TicketConfig{
			ReservationTTL: 10 * time.Minute,
			CodePrefix:     "TKT",
		},
		Sweeper: SweeperConfig{
			Interval:  time.Second,
			BatchSize: 100,
		},
	}
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Port: getEnv("SERVER_PORT", "8080"),
	}
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "postgres"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: getEnvInt("DB_MAX_CONNS", 25),
		MinConns: getEnvInt("DB_MIN_CONNS", 5),
	}
}

func GetRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

func GetNATSConfig() NATSConfig {
	return NATSConfig{
		URL:        getEnv("NATS_URL", "nats://localhost:4222"),
		StreamName: getEnv("NATS_STREAM", "TOURNAMENT_EVENTS"),
		Subject:    getEnv("NATS_SUBJECT", "tournament.events"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		panic(err)
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(err)
	}
	return d
}
