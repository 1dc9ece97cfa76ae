package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceHost string
	ServicePort int
	LogLevel    string
	LogFormat   string

	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	Storage   StorageConfig
	Inference InferenceConfig
	Cache     CacheConfig
	CORS      CORSConfig
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver string
}

type JWTConfig struct {
	Token         string
	ExpiresIn     time.Duration
	SigningMethod jwt.SigningMethod `mapstructure:"-"`
}

type RedisConfig struct {
	Host        string
	Password    string
	Port        int
	User        string
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// Enabled reports whether a redis host is configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type StorageConfig struct {
	// Driver is "minio" or "local".
	Driver   string
	LocalDir string
}

type InferenceConfig struct {
	Timeout              time.Duration
	CompensationAttempts int
	CompensationBackoff  time.Duration
}

type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type CORSConfig struct {
	AllowOrigins []string
}

const (
	envRedisHost = "REDIS_HOST"
	envRedisPort = "REDIS_PORT"
	envRedisUser = "REDIS_USER"
	envRedisPass = "REDIS_PASSWORD"

	envMinIOEndpoint  = "MINIO_ENDPOINT"
	envMinIOAccessKey = "MINIO_ACCESS_KEY"
	envMinIOSecretKey = "MINIO_SECRET_KEY"

	envJWTSecret = "JWT_SECRET"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("ServiceHost", "0.0.0.0")
	v.SetDefault("ServicePort", 8080)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
	v.SetDefault("Database.Driver", "postgres")
	v.SetDefault("JWT.Token", "test")
	v.SetDefault("JWT.ExpiresIn", "192h")
	v.SetDefault("MinIO.Bucket", "ml-models")
	v.SetDefault("Storage.Driver", "minio")
	v.SetDefault("Storage.LocalDir", "data")
	v.SetDefault("Inference.Timeout", "30s")
	v.SetDefault("Inference.CompensationAttempts", 3)
	v.SetDefault("Inference.CompensationBackoff", "100ms")
	v.SetDefault("Cache.Enabled", false)
	v.SetDefault("Cache.TTL", "10m")
	v.SetDefault("CORS.AllowOrigins", []string{"*"})
}

func NewConfig() (*Config, error) {
	var err error

	configName := "config"
	_ = godotenv.Load()
	if os.Getenv("CONFIG_NAME") != "" {
		configName = os.Getenv("CONFIG_NAME")
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configName)
	v.SetConfigType("toml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")

	err = v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = v.Unmarshal(cfg)
	if err != nil {
		return nil, err
	}

	if err = cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info("config parsed")

	return cfg, nil
}

// applyEnv fills secrets and endpoints from the environment.
func (c *Config) applyEnv() error {
	var err error

	c.JWT.SigningMethod = jwt.SigningMethodHS256
	if secret := os.Getenv(envJWTSecret); secret != "" {
		c.JWT.Token = secret
	}

	if host := os.Getenv(envRedisHost); host != "" {
		c.Redis.Host = host
		c.Redis.Port, err = strconv.Atoi(os.Getenv(envRedisPort))
		if err != nil {
			return fmt.Errorf("redis port must be int value: %w", err)
		}
		c.Redis.Password = os.Getenv(envRedisPass)
		c.Redis.User = os.Getenv(envRedisUser)
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 10 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 10 * time.Second
	}

	if endpoint := os.Getenv(envMinIOEndpoint); endpoint != "" {
		c.MinIO.Endpoint = endpoint
	}
	if key := os.Getenv(envMinIOAccessKey); key != "" {
		c.MinIO.AccessKey = key
	}
	if key := os.Getenv(envMinIOSecretKey); key != "" {
		c.MinIO.SecretKey = key
	}

	return nil
}

// Validate checks values the rest of the service relies on.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "minio", "local":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Inference.CompensationAttempts < 1 {
		return fmt.Errorf("inference.compensationattempts must be at least 1, got %d", c.Inference.CompensationAttempts)
	}
	if c.Cache.Enabled && !c.Redis.Enabled() {
		return fmt.Errorf("cache requires redis")
	}
	return nil
}
