package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig
	DB        DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Session   SessionConfig
	Auth      AuthConfig
	Superuser SuperuserConfig
	CORS      CORSConfig
	Logger    LoggerConfig
}

// AppConfig holds configuration for the application server
type AppConfig struct {
	Env             string        `mapstructure:"APP_ENV"`
	HTTPPort        string        `mapstructure:"HTTP_PORT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	SecretKey       string        `mapstructure:"SECRET_KEY"`
	Debug           bool          `mapstructure:"DEBUG"`
	SiteURL         string        `mapstructure:"SITE_URL"` // scheme and host for links sent by email
}

// DatabaseConfig holds configuration for the database
type DatabaseConfig struct {
	Driver          string        `mapstructure:"DB_DRIVER"` // postgres or sqlite
	Host            string        `mapstructure:"DB_HOST"`
	Port            string        `mapstructure:"DB_PORT"`
	User            string        `mapstructure:"DB_USER"`
	Password        string        `mapstructure:"DB_PASSWORD"`
	Name            string        `mapstructure:"DB_NAME"`
	SSLMode         string        `mapstructure:"DB_SSLMODE"`
	SQLitePath      string        `mapstructure:"DB_SQLITE_PATH"`
	MaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
}

// RedisConfig holds configuration for redis
type RedisConfig struct {
	Enabled     bool          `mapstructure:"REDIS_ENABLED"`
	Host        string        `mapstructure:"REDIS_HOST"`
	Port        string        `mapstructure:"REDIS_PORT"`
	Password    string        `mapstructure:"REDIS_PASSWORD"`
	DB          int           `mapstructure:"REDIS_DB"`
	MaxRetries  int           `mapstructure:"REDIS_MAX_RETRIES"`
	PoolSize    int           `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConn int           `mapstructure:"REDIS_MIN_IDLE_CONN"`
	CacheTTL    time.Duration `mapstructure:"REDIS_CACHE_TTL"`
}

// RateLimitConfig holds configuration for the rate limiter
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"RATE_LIMIT_ENABLED"`
	RequestsPerSecond float64 `mapstructure:"RATE_LIMIT_RPS"`
	Burst             int     `mapstructure:"RATE_LIMIT_BURST"`
}

// SessionConfig holds configuration for login sessions
type SessionConfig struct {
	Engine     string        `mapstructure:"SESSION_ENGINE"` // db or redis
	CookieName string        `mapstructure:"SESSION_COOKIE_NAME"`
	MaxAge     time.Duration `mapstructure:"SESSION_COOKIE_AGE"`
	Secure     bool          `mapstructure:"SESSION_COOKIE_SECURE"`
	// CleanupInterval is how often expired database sessions are purged.
	CleanupInterval time.Duration `mapstructure:"SESSION_CLEANUP_INTERVAL"`
}

// AuthConfig holds configuration for the auth views
type AuthConfig struct {
	PasswordResetTimeout time.Duration `mapstructure:"PASSWORD_RESET_TIMEOUT"`
	LoginRedirectURL     string        `mapstructure:"LOGIN_REDIRECT_URL"`
	DefaultFromEmail     string        `mapstructure:"DEFAULT_FROM_EMAIL"`
	Argon2Time           uint32        `mapstructure:"ARGON2_TIME"`
	Argon2MemoryKiB      uint32        `mapstructure:"ARGON2_MEMORY_KIB"`
	Argon2Threads        uint8         `mapstructure:"ARGON2_THREADS"`
}

// SuperuserConfig is the account created at startup when Username is set
type SuperuserConfig struct {
	Username string `mapstructure:"SUPERUSER_USERNAME"`
	Email    string `mapstructure:"SUPERUSER_EMAIL"`
	Password string `mapstructure:"SUPERUSER_PASSWORD"`
}

// CORSConfig holds the origins allowed to call the site
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level            string  `mapstructure:"LOG_LEVEL"`
	Format           string  `mapstructure:"LOG_FORMAT"`
	OutputPath       string  `mapstructure:"LOG_OUTPUT_PATH"`
	SlowQuerySeconds float64 `mapstructure:"LOG_SLOW_QUERY_SECONDS"`
	EnableSampling   bool    `mapstructure:"LOG_ENABLE_SAMPLING"`
	ServiceName      string  `mapstructure:"SERVICE_NAME"`
	ServiceVersion   string  `mapstructure:"SERVICE_VERSION"`
	MaxSizeMB        int     `mapstructure:"LOG_MAX_SIZE_MB"`
	MaxBackups       int     `mapstructure:"LOG_MAX_BACKUPS"`
	MaxAgeDays       int     `mapstructure:"LOG_MAX_AGE_DAYS"`
}

const insecureSecretKey = "django-insecure-change-me"

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (*Config, error) {
	viper.AutomaticEnv() // Read from environment variables

	viper.AddConfigPath(path)
	viper.SetConfigName("app") // Look for app.env
	viper.SetConfigType("env")

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if we have env vars
	}

	// Environment-dependent defaults need APP_ENV from either source.
	setDefaults()

	var config Config

	config.App.Env = viper.GetString("APP_ENV")
	config.App.HTTPPort = viper.GetString("HTTP_PORT")
	config.App.ShutdownTimeout = viper.GetDuration("SHUTDOWN_TIMEOUT")
	config.App.SecretKey = viper.GetString("SECRET_KEY")
	config.App.Debug = viper.GetBool("DEBUG")
	config.App.SiteURL = strings.TrimRight(viper.GetString("SITE_URL"), "/")
	if config.App.SiteURL == "" {
		config.App.SiteURL = "http://localhost:" + config.App.HTTPPort
	}

	config.DB.Driver = strings.ToLower(viper.GetString("DB_DRIVER"))
	config.DB.Host = viper.GetString("DB_HOST")
	config.DB.Port = viper.GetString("DB_PORT")
	config.DB.User = viper.GetString("DB_USER")
	config.DB.Password = viper.GetString("DB_PASSWORD")
	config.DB.Name = viper.GetString("DB_NAME")
	config.DB.SSLMode = viper.GetString("DB_SSLMODE")
	config.DB.SQLitePath = viper.GetString("DB_SQLITE_PATH")
	config.DB.MaxOpenConns = viper.GetInt("DB_MAX_OPEN_CONNS")
	config.DB.MaxIdleConns = viper.GetInt("DB_MAX_IDLE_CONNS")
	config.DB.ConnMaxLifetime = viper.GetDuration("DB_CONN_MAX_LIFETIME")

	config.Redis.Enabled = viper.GetBool("REDIS_ENABLED")
	config.Redis.Host = viper.GetString("REDIS_HOST")
	config.Redis.Port = viper.GetString("REDIS_PORT")
	config.Redis.Password = viper.GetString("REDIS_PASSWORD")
	config.Redis.DB = viper.GetInt("REDIS_DB")
	config.Redis.MaxRetries = viper.GetInt("REDIS_MAX_RETRIES")
	config.Redis.PoolSize = viper.GetInt("REDIS_POOL_SIZE")
	config.Redis.MinIdleConn = viper.GetInt("REDIS_MIN_IDLE_CONN")
	config.Redis.CacheTTL = viper.GetDuration("REDIS_CACHE_TTL")

	config.RateLimit.Enabled = viper.GetBool("RATE_LIMIT_ENABLED")
	config.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	config.RateLimit.Burst = viper.GetInt("RATE_LIMIT_BURST")

	config.Session.Engine = strings.ToLower(viper.GetString("SESSION_ENGINE"))
	config.Session.CookieName = viper.GetString("SESSION_COOKIE_NAME")
	config.Session.MaxAge = viper.GetDuration("SESSION_COOKIE_AGE")
	config.Session.Secure = viper.GetBool("SESSION_COOKIE_SECURE")
	config.Session.CleanupInterval = viper.GetDuration("SESSION_CLEANUP_INTERVAL")

	config.Auth.PasswordResetTimeout = viper.GetDuration("PASSWORD_RESET_TIMEOUT")
	config.Auth.LoginRedirectURL = viper.GetString("LOGIN_REDIRECT_URL")
	config.Auth.DefaultFromEmail = viper.GetString("DEFAULT_FROM_EMAIL")
	config.Auth.Argon2Time = viper.GetUint32("ARGON2_TIME")
	config.Auth.Argon2MemoryKiB = viper.GetUint32("ARGON2_MEMORY_KIB")
	config.Auth.Argon2Threads = uint8(viper.GetUint("ARGON2_THREADS"))

	config.Superuser.Username = viper.GetString("SUPERUSER_USERNAME")
	config.Superuser.Email = viper.GetString("SUPERUSER_EMAIL")
	config.Superuser.Password = viper.GetString("SUPERUSER_PASSWORD")

	config.CORS.AllowedOrigins = splitList(viper.GetString("CORS_ALLOWED_ORIGINS"))

	config.Logger.Level = viper.GetString("LOG_LEVEL")
	config.Logger.Format = viper.GetString("LOG_FORMAT")
	config.Logger.OutputPath = viper.GetString("LOG_OUTPUT_PATH")
	config.Logger.SlowQuerySeconds = viper.GetFloat64("LOG_SLOW_QUERY_SECONDS")
	config.Logger.EnableSampling = viper.GetBool("LOG_ENABLE_SAMPLING")
	config.Logger.ServiceName = viper.GetString("SERVICE_NAME")
	config.Logger.ServiceVersion = viper.GetString("SERVICE_VERSION")
	config.Logger.MaxSizeMB = viper.GetInt("LOG_MAX_SIZE_MB")
	config.Logger.MaxBackups = viper.GetInt("LOG_MAX_BACKUPS")
	config.Logger.MaxAgeDays = viper.GetInt("LOG_MAX_AGE_DAYS")

	return &config, nil
}

func setDefaults() {
	env := viper.GetString("APP_ENV")
	production := env == "production"

	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	viper.SetDefault("SECRET_KEY", insecureSecretKey)
	viper.SetDefault("DEBUG", !production)

	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "newspaper")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SQLITE_PATH", "db.sqlite3")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	viper.SetDefault("REDIS_ENABLED", false)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_MAX_RETRIES", 3)
	viper.SetDefault("REDIS_POOL_SIZE", 10)
	viper.SetDefault("REDIS_MIN_IDLE_CONN", 2)
	viper.SetDefault("REDIS_CACHE_TTL", "5m")

	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)

	viper.SetDefault("SESSION_ENGINE", "db")
	viper.SetDefault("SESSION_COOKIE_NAME", "sessionid")
	viper.SetDefault("SESSION_COOKIE_AGE", "336h") // two weeks
	viper.SetDefault("SESSION_COOKIE_SECURE", production)
	viper.SetDefault("SESSION_CLEANUP_INTERVAL", "1h")

	viper.SetDefault("PASSWORD_RESET_TIMEOUT", "72h")
	viper.SetDefault("LOGIN_REDIRECT_URL", "/")
	viper.SetDefault("DEFAULT_FROM_EMAIL", "webmaster@localhost")
	viper.SetDefault("ARGON2_TIME", 3)
	viper.SetDefault("ARGON2_MEMORY_KIB", 64*1024)
	viper.SetDefault("ARGON2_THREADS", 2)

	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")

	// Logger defaults
	if production {
		viper.SetDefault("LOG_LEVEL", "info")
		viper.SetDefault("LOG_FORMAT", "json")
		viper.SetDefault("LOG_ENABLE_SAMPLING", true)
	} else {
		viper.SetDefault("LOG_LEVEL", "debug")
		viper.SetDefault("LOG_FORMAT", "console")
		viper.SetDefault("LOG_ENABLE_SAMPLING", false)
	}
	viper.SetDefault("LOG_OUTPUT_PATH", "stdout")
	viper.SetDefault("LOG_SLOW_QUERY_SECONDS", 0.2)
	viper.SetDefault("SERVICE_NAME", "newspaper")
	viper.SetDefault("SERVICE_VERSION", "1.0.0")
	viper.SetDefault("LOG_MAX_SIZE_MB", 100)
	viper.SetDefault("LOG_MAX_BACKUPS", 3)
	viper.SetDefault("LOG_MAX_AGE_DAYS", 28)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DB.Driver))
	}

	switch c.Session.Engine {
	case "db":
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("SESSION_ENGINE=redis requires REDIS_ENABLED=true"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_ENGINE must be db or redis, got %q", c.Session.Engine))
	}

	if c.RateLimit.Enabled {
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("RATE_LIMIT_ENABLED=true requires REDIS_ENABLED=true"))
		}
		if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
			errs = append(errs, errors.New("RATE_LIMIT_RPS must be positive and RATE_LIMIT_BURST at least 1"))
		}
	}

	if c.App.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY must not be empty"))
	}
	if c.App.Env == "production" && c.App.SecretKey == insecureSecretKey {
		errs = append(errs, errors.New("SECRET_KEY must be set in production"))
	}

	if err := validateSiteURL(c.App.SiteURL); err != nil {
		errs = append(errs, err)
	}

	if c.Session.CookieName == "" || c.Session.MaxAge <= 0 {
		errs = append(errs, errors.New("SESSION_COOKIE_NAME and a positive SESSION_COOKIE_AGE are required"))
	}
	if c.Auth.PasswordResetTimeout <= 0 {
		errs = append(errs, errors.New("PASSWORD_RESET_TIMEOUT must be positive"))
	}
	if c.Superuser.Username != "" && c.Superuser.Password == "" {
		errs = append(errs, errors.New("SUPERUSER_PASSWORD is required with SUPERUSER_USERNAME"))
	}

	return errors.Join(errs...)
}

func validateSiteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("SITE_URL is not a valid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SITE_URL must be an absolute http or https URL, got %q", raw)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return fmt.Errorf("SITE_URL must hold only a scheme and host, got %q", raw)
	}
	return nil
}

// DSN returns the PostgreSQL Data Source Name
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}
