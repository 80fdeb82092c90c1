package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the portal client configuration.
type Config struct {
	APIURL            string
	HubPath           string
	ReconnectDelay    time.Duration
	ReconnectAttempts int
	RequestTimeout    time.Duration
	TokenSkew         time.Duration
	StateFile         string
	RefreshToken      string
	Language          string
	AvailableLocales  []string
	Debug             bool
}

// ServerConfig is the development API server configuration.
type ServerConfig struct {
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	RequestTimeout     time.Duration
	JWTSecret          string
	JWTAccessTTL       time.Duration
	JWTRefreshTTL      time.Duration
	CORSOrigins        []string
	RateLimitRPM       int
	AuthRateLimitRPM   int
	DatabaseURL        string
	DBMaxConns         int32
	DBMinConns         int32
	TokenCleanup       time.Duration
	SecureCookie       bool
	DevRoutes          bool
	Debug              bool
}

// Load reads the client configuration from the environment after applying
// any env files. Missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	cfg := &Config{
		APIURL:            getEnv("MEDRUNNER_API_URL", "http://localhost:8080"),
		HubPath:           getEnv("MEDRUNNER_HUB_PATH", "/hub/emergency"),
		ReconnectDelay:    getDuration("MEDRUNNER_RECONNECT_DELAY", 5*time.Second),
		ReconnectAttempts: getInt("MEDRUNNER_RECONNECT_ATTEMPTS", 4),
		RequestTimeout:    getDuration("MEDRUNNER_REQUEST_TIMEOUT", 30*time.Second),
		TokenSkew:         getDuration("MEDRUNNER_TOKEN_SKEW", 0),
		StateFile:         getEnv("MEDRUNNER_STATE_FILE", "./state/portal.json"),
		RefreshToken:      strings.TrimSpace(os.Getenv("MEDRUNNER_REFRESH_TOKEN")),
		Language:          getEnv("MEDRUNNER_LANGUAGE", "en-US"),
		AvailableLocales:  splitCSV(getEnv("MEDRUNNER_AVAILABLE_LOCALES", "en-US,fr-FR,de-DE,es-ES")),
		Debug:             getBool("MEDRUNNER_DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("MEDRUNNER_API_URL must be an http(s) URL")
	}

	if !strings.HasPrefix(c.HubPath, "/") {
		return fmt.Errorf("MEDRUNNER_HUB_PATH must start with /")
	}

	if c.ReconnectDelay < 0 {
		return fmt.Errorf("MEDRUNNER_RECONNECT_DELAY cannot be negative")
	}

	if c.ReconnectAttempts <= 0 {
		return fmt.Errorf("MEDRUNNER_RECONNECT_ATTEMPTS must be positive")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("MEDRUNNER_REQUEST_TIMEOUT must be positive")
	}

	if c.TokenSkew < 0 {
		return fmt.Errorf("MEDRUNNER_TOKEN_SKEW cannot be negative")
	}

	if strings.TrimSpace(c.StateFile) == "" {
		return fmt.Errorf("MEDRUNNER_STATE_FILE cannot be empty")
	}

	if len(c.AvailableLocales) == 0 {
		return fmt.Errorf("MEDRUNNER_AVAILABLE_LOCALES cannot be empty")
	}

	return nil
}

// LoadServer reads the development server configuration.
func LoadServer(envFiles ...string) (*ServerConfig, error) {
	_ = godotenv.Load(envFiles...)

	cfg := &ServerConfig{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		ServerReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:       getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		JWTRefreshTTL:      getDuration("JWT_REFRESH_TTL", 168*time.Hour),
		CORSOrigins:        splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:       getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:   getInt("AUTH_RATE_LIMIT_RPM", 10),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:         int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:         int32(getInt("DB_MIN_CONNS", 1)),
		TokenCleanup:       getDuration("TOKEN_CLEANUP_INTERVAL", time.Hour),
		SecureCookie:       getBool("COOKIE_SECURE", false),
		DevRoutes:          getBool("DEV_ROUTES", true),
		Debug:              getBool("DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
	}

	if c.RateLimitRPM <= 0 || c.AuthRateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM and AUTH_RATE_LIMIT_RPM must be positive")
	}

	if c.TokenCleanup <= 0 {
		return fmt.Errorf("TOKEN_CLEANUP_INTERVAL must be positive")
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}

	return nil
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
