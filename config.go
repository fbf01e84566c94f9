package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Supported book storage drivers.
const (
	FirestoreDriver = "firestore"
	RedisDriver     = "redis"
	BoltDBDriver    = "boltdb"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit          string          `yaml:"git_commit" envconfig:"BOOKS_GIT_COMMIT" json:"git_commit"`
	GitTag             string          `yaml:"git_tag" envconfig:"BOOKS_GIT_TAG" json:"git_tag"`
	BuildTime          string          `yaml:"build_time" envconfig:"BOOKS_BUILD_TIME" json:"build_time"`
	IsProduction       bool            `yaml:"is_production" envconfig:"BOOKS_IS_PRODUCTION" json:"is_production"`
	LogLevel           zapcore.Level   `yaml:"log_level" envconfig:"BOOKS_LOG_LEVEL" json:"log_level"`
	LogFile            string          `yaml:"log_file" envconfig:"BOOKS_LOG_FILE" json:"log_file"`
	LogMaxSize         int             `yaml:"log_max_size" envconfig:"BOOKS_LOG_MAX_SIZE" json:"log_max_size"` // megabytes
	LogMaxBackups      int             `yaml:"log_max_backups" envconfig:"BOOKS_LOG_MAX_BACKUPS" json:"log_max_backups"`
	LogMaxAge          int             `yaml:"log_max_age" envconfig:"BOOKS_LOG_MAX_AGE" json:"log_max_age"` // days
	LogCompress        bool            `yaml:"log_compress" envconfig:"BOOKS_LOG_COMPRESS" json:"log_compress"`
	ProfilerEnable     bool            `yaml:"profiler_enable" envconfig:"BOOKS_PROFILER_ENABLE" json:"profiler_enable"`
	OpsEndpointsEnable bool            `yaml:"ops_endpoints_enable" envconfig:"BOOKS_OPS_ENDPOINTS_ENABLE" json:"ops_endpoints_enable"`
	Server             ServerConfig    `yaml:"server" json:"server"`
	Store              StoreConfig     `yaml:"store" json:"store"`
	Firestore          FirestoreConfig `yaml:"firestore" json:"firestore"`
	Redis              RedisConfig     `yaml:"redis" json:"redis"`
	BoltDB             BoltDBConfig    `yaml:"boltdb" json:"boltdb"`
	Replica            ReplicaConfig   `yaml:"replica" json:"replica"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"BOOKS_SERVER_HOST" json:"host"`
	Port            string        `yaml:"port" envconfig:"PORT" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"BOOKS_SERVER_READ_TIMEOUT" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"BOOKS_SERVER_WRITE_TIMEOUT" json:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"BOOKS_SERVER_REQUEST_TIMEOUT" json:"request_timeout"` // Time to wait for a request to finish
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"BOOKS_SERVER_SHUTDOWN_TIMEOUT" json:"shutdown_timeout"`
}

// StoreConfig selects the book storage and how listing behaves.
type StoreConfig struct {
	Driver         string `yaml:"driver" envconfig:"BOOKS_STORE_DRIVER" json:"driver"`
	Collection     string `yaml:"collection" envconfig:"BOOKS_STORE_COLLECTION" json:"collection"`
	ListOrderField string `yaml:"list_order_field" envconfig:"BOOKS_STORE_LIST_ORDER_FIELD" json:"list_order_field"`
	ListLimit      int    `yaml:"list_limit" envconfig:"BOOKS_STORE_LIST_LIMIT" json:"list_limit"`
}

type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id" envconfig:"BOOKS_FIRESTORE_PROJECT_ID" json:"project_id"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"BOOKS_FIRESTORE_CREDENTIALS_FILE" json:"credentials_file"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"BOOKS_REDIS_HOST" json:"host"`
	Port          string        `yaml:"port" envconfig:"BOOKS_REDIS_PORT" json:"port"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"BOOKS_REDIS_DIAL_TIMEOUT" json:"dial_timeout"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"BOOKS_REDIS_READ_TIMEOUT" json:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"BOOKS_REDIS_WRITE_TIMEOUT" json:"write_timeout"`
	PoolSize      int           `yaml:"pool_size" envconfig:"BOOKS_REDIS_POOL_SIZE" json:"pool_size"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"BOOKS_REDIS_POOL_TIMEOUT" json:"pool_timeout"`
	Username      string        `yaml:"username" envconfig:"BOOKS_REDIS_USERNAME" json:"-"`
	Password      string        `yaml:"password" envconfig:"BOOKS_REDIS_PASSWORD" json:"-"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"BOOKS_REDIS_DATABASE_INDEX" json:"db_index"`
}

type BoltDBConfig struct {
	FilePath   string        `yaml:"filepath" envconfig:"BOOKS_BOLTDB_FILE_PATH" json:"filepath"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"BOOKS_BOLTDB_TIMEOUT" json:"timeout"`
	BucketName string        `yaml:"bucket_name" envconfig:"BOOKS_BOLTDB_BUCKET_NAME" json:"bucket_name"` // replica bucket
}

// ReplicaConfig enables mirroring of book changes into boltdb through redis queues.
type ReplicaConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"BOOKS_REPLICA_ENABLED" json:"enabled"`
}

// DefaultConfig provides the configuration used for any setting
// missing from the file and the environment.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      zapcore.InfoLevel,
		LogFile:       "./logs/books-api.log",
		LogMaxSize:    100,
		LogMaxBackups: 5,
		LogMaxAge:     30,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "3001",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  20 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:         FirestoreDriver,
			Collection:     "books",
			ListOrderField: "name",
			ListLimit:      20,
		},
		Firestore: FirestoreConfig{
			CredentialsFile: "./serviceAccountKey.json",
		},
		Redis: RedisConfig{
			Host:        "localhost",
			Port:        "6379",
			DialTimeout: 5 * time.Second,
			PoolSize:    10,
		},
		BoltDB: BoltDBConfig{
			FilePath:   "./db/books.db",
			Timeout:    5 * time.Second,
			BucketName: "books.replica",
		},
	}
}

// LoadConfigFile overrides the given config with the content of the yaml file.
func LoadConfigFile(configFile string, config *Config) error {
	file, err := os.Open(configFile)
	if err != nil {
		return err
	}
	defer file.Close()
	err = yaml.NewDecoder(file).Decode(config)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// LoadConfigEnvs reads the environments variables into the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig configures build tags values to be used if provided
// then checks the final settings are consistent.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Server.Port) == 0 {
		return errors.New("make sure to set a valid server port")
	}

	switch config.Store.Driver {
	case FirestoreDriver, RedisDriver, BoltDBDriver:
	default:
		return fmt.Errorf("unknown store driver %q", config.Store.Driver)
	}

	if len(config.Store.Collection) == 0 {
		return errors.New("make sure to set a store collection name")
	}

	if config.Store.ListLimit <= 0 {
		return errors.New("store list limit must be positive")
	}

	if (config.Store.Driver == RedisDriver || config.Replica.Enabled) &&
		(len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0) {
		return errors.New("make sure to set valid redis address and port in configuration")
	}

	if config.Replica.Enabled && config.Store.Driver == BoltDBDriver {
		return errors.New("replica cannot be enabled with the boltdb store driver")
	}

	return nil
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data. Missing files are skipped.
func LoadAndInitConfigs(gitCommit, gitTag, buildTime string) (*Config, error) {
	config := DefaultConfig()

	err := LoadConfigFile("./config.yml", config)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("failed to load configurations from file: %w", err)
	}

	err = godotenv.Load("./config.env")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("failed to set environment configurations: %w", err)
	}

	// Use environment variables with prefix `BOOKS`.
	err = LoadConfigEnvs("BOOKS", config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %w", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %w", err)
	}
	return config, nil
}
