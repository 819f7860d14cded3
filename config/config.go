package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"load-request-api-server/internal/models"
)

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// DatabaseConfig selects the store backend: mongo, postgres or memory.
type DatabaseConfig struct {
	Type string `mapstructure:"type"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	DBName         string        `mapstructure:"dbName"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout"`
}

type PostgresConfig struct {
	URL            string        `mapstructure:"url"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Expiration string `mapstructure:"expiration"`
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"accessKeyID"`
	SecretAccessKey  string `mapstructure:"secretAccessKey"`
	CloudFrontDomain string `mapstructure:"cloudFrontDomain"`
	Endpoint         string `mapstructure:"endpoint"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Mode  string `mapstructure:"mode"`
}

type EngineConfig struct {
	OperationTimeout  time.Duration `mapstructure:"operationTimeout"`
	AllowOverShipment bool          `mapstructure:"allowOverShipment"`
	NotifyRetries     int           `mapstructure:"notifyRetries"`
}

// DepotConfig routes a depot to its warehouse, approvers and default truck.
type DepotConfig struct {
	ID          string        `mapstructure:"id"`
	WarehouseID string        `mapstructure:"warehouseId"`
	Approvers   []string      `mapstructure:"approvers"`
	Truck       *models.Truck `mapstructure:"truck"`
}

type Config struct {
	Server           ServerConfig   `mapstructure:"server"`
	Database         DatabaseConfig `mapstructure:"database"`
	Mongo            MongoConfig    `mapstructure:"mongo"`
	Postgres         PostgresConfig `mapstructure:"postgres"`
	JWT              JWTConfig      `mapstructure:"jwt"`
	S3               S3Config       `mapstructure:"s3"`
	Log              LogConfig      `mapstructure:"log"`
	Engine           EngineConfig   `mapstructure:"engine"`
	DefaultApprovers []string       `mapstructure:"defaultApprovers"`
	Depots           []DepotConfig  `mapstructure:"depots"`
	// Catalog seeds SKU details for the memory backend.
	Catalog []models.SKU `mapstructure:"catalog"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("database.type", "memory")
	v.SetDefault("mongo.dbName", "load_requests")
	v.SetDefault("mongo.connectTimeout", 10*time.Second)
	v.SetDefault("postgres.connectTimeout", 10*time.Second)
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.mode", "production")
	v.SetDefault("engine.operationTimeout", 5*time.Second)
	v.SetDefault("engine.allowOverShipment", false)
	v.SetDefault("engine.notifyRetries", 1)
}

// LoadConfig reads config.yaml from path and overrides it with environment
// variables. A .env file in the working directory is loaded first if present;
// a missing config.yaml is not an error.
func LoadConfig(path string) (config Config, err error) {
	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return
	}

	v := viper.New()
	v.AddConfigPath(filepath.Clean(path))
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("database.type", "DB_TYPE")
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("mongo.dbName", "MONGO_DBNAME")
	v.BindEnv("postgres.url", "POSTGRES_URL")
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	v.BindEnv("s3.bucket", "S3_BUCKET")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.accessKeyID", "S3_ACCESS_KEY_ID")
	v.BindEnv("s3.secretAccessKey", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("s3.cloudFrontDomain", "S3_CLOUDFRONT_DOMAIN")
	v.BindEnv("s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.mode", "LOG_MODE")
	v.BindEnv("engine.operationTimeout", "ENGINE_OPERATION_TIMEOUT")
	v.BindEnv("engine.allowOverShipment", "ENGINE_ALLOW_OVER_SHIPMENT")
	v.BindEnv("engine.notifyRetries", "ENGINE_NOTIFY_RETRIES")

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
