package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	JWT      JWTConfig
	Log      LogConfig
	CORS     CORSConfig
	Wages    WageConfig
	Export   ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig toggles Redis-backed caching of wage aggregates.
type CacheConfig struct {
	Enabled        bool
	Prefix         string
	WageStatsTTL   time.Duration
	OutstandingTTL time.Duration
}

type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// WageConfig tunes the wage calculator.
type WageConfig struct {
	// UpdateRetries bounds how often a version conflict on a single wage
	// record is re-read and re-applied before giving up.
	UpdateRetries int
	Currency      string
}

// ExportConfig controls payroll export rendering.
type ExportConfig struct {
	PDFTitle string
	// ArchiveDir keeps a copy of every rendered report when set.
	ArchiveDir string
	ArchiveTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled:        v.GetBool("CACHE_ENABLED"),
		Prefix:         v.GetString("CACHE_PREFIX"),
		WageStatsTTL:   parseDuration(v.GetString("WAGE_STATS_CACHE_TTL"), 5*time.Minute),
		OutstandingTTL: parseDuration(v.GetString("WAGE_OUTSTANDING_CACHE_TTL"), time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret:         v.GetString("JWT_SECRET"),
		Issuer:         v.GetString("JWT_ISSUER"),
		AccessTokenTTL: parseDuration(v.GetString("JWT_ACCESS_TOKEN_TTL"), time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	retries := v.GetInt("WAGE_UPDATE_RETRIES")
	if retries <= 0 {
		retries = 3
	}
	cfg.Wages = WageConfig{
		UpdateRetries: retries,
		Currency:      strings.ToUpper(strings.TrimSpace(v.GetString("WAGE_CURRENCY"))),
	}

	cfg.Export = ExportConfig{
		PDFTitle:   v.GetString("EXPORT_PDF_TITLE"),
		ArchiveDir: strings.TrimSpace(v.GetString("EXPORT_ARCHIVE_DIR")),
		ArchiveTTL: parseDuration(v.GetString("EXPORT_ARCHIVE_TTL"), 90*24*time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tutoring_ledger")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_PREFIX", "tutoring")
	v.SetDefault("WAGE_STATS_CACHE_TTL", "5m")
	v.SetDefault("WAGE_OUTSTANDING_CACHE_TTL", "1m")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "tutoring-ledger-api")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", "1h")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("WAGE_UPDATE_RETRIES", 3)
	v.SetDefault("WAGE_CURRENCY", "THB")

	v.SetDefault("EXPORT_PDF_TITLE", "Teacher Payroll")
	v.SetDefault("EXPORT_ARCHIVE_DIR", "")
	v.SetDefault("EXPORT_ARCHIVE_TTL", "2160h")
}

// isMissingFile reports whether viper failed because the explicit .env file
// does not exist; SetConfigFile bypasses ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
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
