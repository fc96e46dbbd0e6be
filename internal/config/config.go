package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Leader   LeaderConfig   `mapstructure:"leader"`
	Instance InstanceConfig `mapstructure:"instance"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Bidding  BiddingConfig  `mapstructure:"bidding"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	Key string        `mapstructure:"key"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type StorageConfig struct {
	// Driver is one of memory, redis or mysql.
	Driver string `mapstructure:"driver"`
}

type BiddingConfig struct {
	MaxAttempts uint          `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Precision   int32         `mapstructure:"precision"`
}

type SweepConfig struct {
	Schedule  string `mapstructure:"schedule"`
	BatchSize int    `mapstructure:"batch_size"`
}

type AuthConfig struct {
	// Mode is header (trusted gateway headers) or jwt.
	Mode      string `mapstructure:"mode"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverMySQL  = "mysql"

	// scale of the DECIMAL columns in the mysql migrations
	MySQLMaxPrecision = 4

	AuthModeHeader = "header"
	AuthModeJWT    = "jwt"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.migrate", true)
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("leader.key", "auction_leader")
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.driver", DriverRedis)
	v.SetDefault("bidding.max_attempts", 3)
	v.SetDefault("bidding.retry_delay", 10*time.Millisecond)
	v.SetDefault("bidding.precision", 2)
	v.SetDefault("sweep.schedule", "@every 30s")
	v.SetDefault("sweep.batch_size", 100)
	v.SetDefault("auth.mode", AuthModeHeader)
	v.SetDefault("auth.jwt_secret", "")
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()

	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	v.BindEnv("mysql.migrate", "MYSQL_MIGRATE")
	v.BindEnv("leader.ttl", "LEADER_TTL")
	v.BindEnv("leader.key", "LEADER_KEY")
	v.BindEnv("instance.id", "INSTANCE_ID")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("bidding.max_attempts", "BIDDING_MAX_ATTEMPTS")
	v.BindEnv("bidding.retry_delay", "BIDDING_RETRY_DELAY")
	v.BindEnv("bidding.precision", "BIDDING_PRECISION")
	v.BindEnv("sweep.schedule", "SWEEP_SCHEDULE")
	v.BindEnv("sweep.batch_size", "SWEEP_BATCH_SIZE")
	v.BindEnv("auth.mode", "AUTH_MODE")
	v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/auction-bidding/")

	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverRedis, DriverMySQL:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Auth.Mode {
	case AuthModeHeader:
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required in jwt mode")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	if c.Bidding.MaxAttempts == 0 {
		return errors.New("bidding.max_attempts must be at least 1")
	}
	if c.Bidding.Precision < 0 {
		return errors.New("bidding.precision must not be negative")
	}
	if c.Storage.Driver == DriverMySQL && c.Bidding.Precision > MySQLMaxPrecision {
		return fmt.Errorf("bidding.precision %d exceeds the mysql column scale of %d",
			c.Bidding.Precision, MySQLMaxPrecision)
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Storage: %s, Redis: %s, Instance: %s, Auth: %s",
		c.Server.Host,
		c.Server.Port,
		c.Storage.Driver,
		c.Redis.Address,
		c.Instance.ID,
		c.Auth.Mode,
	)
}
