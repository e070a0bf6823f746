package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	GRPCAddress    string `mapstructure:"grpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	// PublicURL prefixes invite links; empty yields relative /room/{id} links.
	PublicURL string `mapstructure:"public_url"`
}

type DatabaseConfig struct {
	// Driver selects the document store: "memory" or "postgres".
	Driver      string         `mapstructure:"driver"`
	MaxAttempts int            `mapstructure:"max_attempts"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type GameConfig struct {
	BoardSize         int           `mapstructure:"board_size"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.grpc_address", ":8082")
	v.SetDefault("server.metrics_address", ":9090")
	v.SetDefault("server.public_url", "")

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.max_attempts", 5)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "boardroom")

	v.SetDefault("game.board_size", 24)
	v.SetDefault("game.heartbeat_interval", 15*time.Second)
}

// LoadConfig reads config.yaml from path. A missing file falls back to defaults
// and BOARDROOM_* environment variables.
func LoadConfig(path string) (config *Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("boardroom")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return config, config.Validate()
}

// Validate rejects settings the room engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverPostgres:
	default:
		return errors.New("database.driver must be memory or postgres")
	}
	if c.Database.MaxAttempts <= 0 {
		return errors.New("database.max_attempts must be positive")
	}
	if c.Game.BoardSize <= 0 {
		return errors.New("game.board_size must be positive")
	}
	if c.Game.HeartbeatInterval <= 0 {
		return errors.New("game.heartbeat_interval must be positive")
	}
	return nil
}
