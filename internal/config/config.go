package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port          string   `env:"PORT" envDefault:"8080"`
	MongoURI      string   `env:"MONGO_URI"`
	DBName        string   `env:"DB_NAME" envDefault:"autoparts"`
	JWTSecret     string   `env:"JWT_SECRET"`
	UploadDir     string   `env:"UPLOAD_DIR" envDefault:"./public/uploads"`
	StorefrontURL string   `env:"STOREFRONT_URL" envDefault:"http://localhost:5173"`
	CORSOrigins   []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	LogLevel      string   `env:"LOG_LEVEL" envDefault:"info"`
	GinMode       string   `env:"GIN_MODE" envDefault:"debug"`

	AccessTokenTTLMinutes int `env:"ACCESS_TOKEN_TTL" envDefault:"60"`
	RefreshTokenTTLDays   int `env:"REFRESH_TOKEN_TTL" envDefault:"7"`

	RedisAddr       string `env:"REDIS_ADDR"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`
	CatalogCacheTTL int    `env:"CATALOG_CACHE_TTL" envDefault:"60"`
	LoginRateLimit  string `env:"LOGIN_RATE_LIMIT" envDefault:"10-M"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"no-reply@autoparts.local"`

	StandardWorkHours int `env:"STANDARD_WORK_HOURS" envDefault:"8"`
}

// AccessTokenTTL and RefreshTokenTTL fall back to the defaults when the
// configured value is not positive.
func (c Config) AccessTokenTTL() time.Duration {
	if c.AccessTokenTTLMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) RefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTLDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.RefreshTokenTTLDays) * 24 * time.Hour
}

func (c Config) CatalogCacheDuration() time.Duration {
	if c.CatalogCacheTTL <= 0 {
		return 0
	}
	return time.Duration(c.CatalogCacheTTL) * time.Second
}

func (c Config) Addr() string {
	port := strings.TrimSpace(c.Port)
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	cfg.MongoURI = strings.TrimSpace(cfg.MongoURI)
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)

	if cfg.MongoURI == "" {
		return Config{}, errors.New("MONGO_URI is not set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is not set")
	}
	if cfg.StandardWorkHours <= 0 {
		cfg.StandardWorkHours = 8
	}

	return cfg, nil
}

func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
