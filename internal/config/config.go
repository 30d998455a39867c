package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	Port       int
	DBURL      string
	DBMaxConns int

	JWTSecret           string
	JWTAccessTTLMinutes int
	JWTRefreshTTLDays   int

	LoginLinkTTLMinutes    int
	LoginLinkLimit         int
	LoginLinkWindowMinutes int

	// PublicURL is the externally reachable base of the API, used to build login links.
	PublicURL      string
	AllowedOrigins []string

	RedisURL      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint     string
	WorkerHealthPort int

	// SheetAPIURL is where the terminal sheet client finds the API.
	SheetAPIURL string
}

func Load() Config {
	// a missing .env is fine; real environments set variables directly
	_ = godotenv.Load()

	port := getEnvInt("PORT", 8080)

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  port,
		DBURL: buildDBURL(),

		DBMaxConns: getEnvInt("DB_MAX_CONNS", 5),

		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTLMinutes: getEnvInt("JWT_ACCESS_TTL_MINUTES", 60),
		JWTRefreshTTLDays:   getEnvInt("JWT_REFRESH_TTL_DAYS", 14),

		LoginLinkTTLMinutes:    getEnvInt("LOGIN_LINK_TTL_MINUTES", 15),
		LoginLinkLimit:         getEnvInt("LOGIN_LINK_LIMIT", 5),
		LoginLinkWindowMinutes: getEnvInt("LOGIN_LINK_WINDOW_MINUTES", 15),

		PublicURL:      strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+strconv.Itoa(port)), "/"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		WorkerHealthPort: getEnvInt("WORKER_HEALTH_PORT", 8081),

		SheetAPIURL: strings.TrimRight(getEnv("SHEET_API_URL", "http://localhost:"+strconv.Itoa(port)), "/"),
	}
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLDays) * 24 * time.Hour
}

func (c Config) LoginLinkTTL() time.Duration {
	return time.Duration(c.LoginLinkTTLMinutes) * time.Minute
}

func (c Config) LoginLinkWindow() time.Duration {
	return time.Duration(c.LoginLinkWindowMinutes) * time.Minute
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "jobsheet")
	pass := getEnv("DB_PASSWORD", "jobsheet")
	name := getEnv("DB_NAME", "jobsheet")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
