package config

import (
	"fmt"
	"os"
	"strings"

	httpapi "github.com/bizense/bizense-manager/internal/api/http"
	"github.com/bizense/bizense-manager/internal/apisrv/auth"
	"github.com/bizense/bizense-manager/internal/ingest"
	"github.com/bizense/bizense-manager/internal/metrics"
	"github.com/bizense/bizense-manager/internal/store"
	"github.com/bizense/bizense-manager/log"
	"github.com/spf13/viper"
)

// Config represents the global configuration for the service.
type Config struct {
	DB     store.Config   `mapstructure:"postgres"`
	Logger log.Config     `mapstructure:"logger"`
	HTTP   httpapi.Config `mapstructure:"http"`
	Auth   auth.Config    `mapstructure:"auth"`
	Fees   metrics.Config `mapstructure:"fees"`
	Upload ingest.Config  `mapstructure:"upload"`
}

// LoadConfig loads the configuration from a file and/or environment
// variables. Environment variables take precedence over config file values.
func LoadConfig(cfgFile string) (*Config, error) {
	viper.SetConfigType("toml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "__"))
	bindEnvVars()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %v", err)
			}
		}
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("$HOME/config/bizense-manager")
		viper.AddConfigPath("/etc/bizense-manager")
		_ = viper.ReadInConfig()
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config into struct: %v", err)
	}

	// Build the DSN from individual POSTGRES_* env vars when not set directly.
	if config.DB.DSN == "" {
		host := os.Getenv("POSTGRES_HOST")
		if host != "" {
			port := os.Getenv("POSTGRES_PORT")
			if port == "" {
				port = "5432"
			}
			user := os.Getenv("POSTGRES_USER")
			password := os.Getenv("POSTGRES_PASSWORD")
			database := os.Getenv("POSTGRES_DB")
			sslmode := os.Getenv("POSTGRES_SSLMODE")
			if sslmode == "" {
				sslmode = "disable"
			}
			if user != "" && database != "" {
				config.DB.DSN = fmt.Sprintf(
					"postgres://%s:%s@%s:%s/%s?sslmode=%s",
					user, password, host, port, database, sslmode,
				)
			}
		}
	}

	return &config, nil
}

// bindEnvVars binds environment variables to config keys so flat names
// like POSTGRES_DSN work next to the nested POSTGRES__DSN form.
func bindEnvVars() {
	// Postgres
	viper.BindEnv("postgres.dsn", "POSTGRES_DSN")
	viper.BindEnv("postgres.automigrate", "POSTGRES_AUTOMIGRATE")
	viper.BindEnv("postgres.max_open_connections", "POSTGRES_MAX_OPEN_CONNECTIONS")
	viper.BindEnv("postgres.max_idle_connections", "POSTGRES_MAX_IDLE_CONNECTIONS")

	// Logger
	viper.BindEnv("logger.level", "LOG_LEVEL")
	viper.BindEnv("logger.add_source", "LOG_ADD_SOURCE")

	// HTTP
	viper.BindEnv("http.port", "HTTP_PORT")
	viper.BindEnv("http.address", "HTTP_ADDRESS")
	viper.BindEnv("http.allowed_origins", "HTTP_ALLOWED_ORIGINS")
	viper.BindEnv("http.request_limit", "HTTP_REQUEST_LIMIT")

	// Auth
	viper.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	viper.BindEnv("auth.master_password", "AUTH_MASTER_PASSWORD")
	viper.BindEnv("auth.password_hasher_salt_size", "AUTH_PASSWORD_HASHER_SALT_SIZE")
	viper.BindEnv("auth.password_hasher_iterations", "AUTH_PASSWORD_HASHER_ITERATIONS")
	viper.BindEnv("auth.jwt_ttl", "AUTH_JWT_TTL")

	// Fees
	viper.BindEnv("fees.cod_fee_percentage", "FEES_COD_FEE_PERCENTAGE")
	viper.BindEnv("fees.service_fee_per_delivery", "FEES_SERVICE_FEE_PER_DELIVERY")
	viper.BindEnv("fees.service_fee_per_lead", "FEES_SERVICE_FEE_PER_LEAD")

	// Upload
	viper.BindEnv("upload.max_file_size_mb", "UPLOAD_MAX_FILE_SIZE_MB")
	viper.BindEnv("upload.dedup_window_minutes", "UPLOAD_DEDUP_WINDOW_MINUTES")
}
