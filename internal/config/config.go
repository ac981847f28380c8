package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Import   ImportConfig
	Catalog  CatalogConfig
	Order    OrderConfig
	Storage  StorageConfig
	Kafka    KafkaConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

// RedisConfig is optional; an empty Addr disables Redis-backed features
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type ImportConfig struct {
	DataDir       string
	Sources       map[string]string // source name -> file name inside DataDir
	MaxRows       int
	BatchSize     int
	ProgressEvery int
	Timeout       time.Duration
	LockTTL       time.Duration
}

type CatalogConfig struct {
	MinLimit     int
	MaxLimit     int
	DefaultLimit int
	WorkingSet   int
}

type OrderConfig struct {
	DeliveryFee     float64
	EnforceAdjacent bool
	RateLimit       int // order submissions per user per minute, 0 disables
}

// StorageConfig points at the object store holding prescription images
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type KafkaConfig struct {
	Brokers    []string
	OrderTopic string
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("IMPORT_DATA_DIR", "data")
	viper.SetDefault("IMPORT_SOURCES", "inventory=inventory.csv.gz,medicines=medicines.csv")
	viper.SetDefault("IMPORT_MAX_ROWS", 45000)
	viper.SetDefault("IMPORT_BATCH_SIZE", 500)
	viper.SetDefault("IMPORT_PROGRESS_EVERY", 1000)
	viper.SetDefault("IMPORT_TIMEOUT", "10m")
	viper.SetDefault("IMPORT_LOCK_TTL", "15m")
	viper.SetDefault("CATALOG_MIN_LIMIT", 12)
	viper.SetDefault("CATALOG_MAX_LIMIT", 60)
	viper.SetDefault("CATALOG_DEFAULT_LIMIT", 24)
	viper.SetDefault("CATALOG_WORKING_SET", 5000)
	viper.SetDefault("ORDER_DELIVERY_FEE", 30)
	viper.SetDefault("ORDER_ENFORCE_ADJACENT", false)
	viper.SetDefault("ORDER_RATE_LIMIT", 10)
	viper.SetDefault("MINIO_BUCKET", "prescriptions")
	viper.SetDefault("KAFKA_ORDER_TOPIC", "pharmacy.orders")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Import: ImportConfig{
			DataDir:       viper.GetString("IMPORT_DATA_DIR"),
			Sources:       ParseSources(viper.GetString("IMPORT_SOURCES")),
			MaxRows:       viper.GetInt("IMPORT_MAX_ROWS"),
			BatchSize:     viper.GetInt("IMPORT_BATCH_SIZE"),
			ProgressEvery: viper.GetInt("IMPORT_PROGRESS_EVERY"),
			Timeout:       viper.GetDuration("IMPORT_TIMEOUT"),
			LockTTL:       viper.GetDuration("IMPORT_LOCK_TTL"),
		},
		Catalog: CatalogConfig{
			MinLimit:     viper.GetInt("CATALOG_MIN_LIMIT"),
			MaxLimit:     viper.GetInt("CATALOG_MAX_LIMIT"),
			DefaultLimit: viper.GetInt("CATALOG_DEFAULT_LIMIT"),
			WorkingSet:   viper.GetInt("CATALOG_WORKING_SET"),
		},
		Order: OrderConfig{
			DeliveryFee:     viper.GetFloat64("ORDER_DELIVERY_FEE"),
			EnforceAdjacent: viper.GetBool("ORDER_ENFORCE_ADJACENT"),
			RateLimit:       viper.GetInt("ORDER_RATE_LIMIT"),
		},
		Storage: StorageConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: viper.GetString("MINIO_SECRET_KEY"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(viper.GetString("KAFKA_BROKERS")),
			OrderTopic: viper.GetString("KAFKA_ORDER_TOPIC"),
		},
	}
}

// ParseSources reads "name=file,name=file" into a map. Entries without a
// file name are ignored.
func ParseSources(raw string) map[string]string {
	sources := make(map[string]string)
	for _, entry := range splitList(raw) {
		name, file, ok := strings.Cut(entry, "=")
		name, file = strings.TrimSpace(name), strings.TrimSpace(file)
		if !ok || name == "" || file == "" {
			continue
		}
		sources[strings.ToLower(name)] = file
	}
	return sources
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
