package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env string
	} `mapstructure:"app"`

	HTTP struct {
		Addr           string
		AllowedOrigins string `mapstructure:"allowed_origins"`
		JWTSecret      string `mapstructure:"jwt_secret"`
	} `mapstructure:"http"`

	Database struct {
		URL            string
		MaxConns       int32 `mapstructure:"max_conns"`
		MigrateOnStart bool  `mapstructure:"migrate_on_start"`
	} `mapstructure:"database"`

	Ledger struct {
		PoolCode            string        `mapstructure:"pool_code"`
		MaxTransferQuantity int           `mapstructure:"max_transfer_quantity"`
		MaxBatchLines       int           `mapstructure:"max_batch_lines"`
		OpTimeout           time.Duration `mapstructure:"op_timeout"`
	} `mapstructure:"ledger"`

	Kafka struct {
		Brokers []string
		Topic   string
	} `mapstructure:"kafka"`

	Tracing struct {
		Enabled  bool
		Endpoint string
	} `mapstructure:"tracing"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "dev")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", "")
	v.SetDefault("http.jwt_secret", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 0)
	v.SetDefault("database.migrate_on_start", false)
	v.SetDefault("ledger.pool_code", "CENTRAL")
	v.SetDefault("ledger.max_transfer_quantity", 1_000_000)
	v.SetDefault("ledger.max_batch_lines", 100)
	v.SetDefault("ledger.op_timeout", 5*time.Second)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "stock.movements")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("metrics.enabled", true)
}

// Load reads an optional YAML file at path (empty path skips the file) and overlays
// LEDGER_* environment variables, e.g. LEDGER_DATABASE_URL or LEDGER_LEDGER_POOL_CODE.
// A .env file in the working directory is loaded first if present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to decode config: %w", err)
	}
	// Comma-separated brokers from the environment arrive as one element.
	if len(c.Kafka.Brokers) == 1 && strings.Contains(c.Kafka.Brokers[0], ",") {
		c.Kafka.Brokers = strings.Split(c.Kafka.Brokers[0], ",")
	}
	return c, nil
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if strings.TrimSpace(c.Ledger.PoolCode) == "" {
		errs = append(errs, errors.New("ledger.pool_code is required"))
	}
	if c.Ledger.MaxTransferQuantity < 0 || c.Ledger.MaxBatchLines < 0 {
		errs = append(errs, errors.New("ledger limits must not be negative"))
	}
	return errors.Join(errs...)
}
