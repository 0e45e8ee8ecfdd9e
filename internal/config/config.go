package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment    string   // ENV: production, development, etc.
	Port           string
	Host           string   // Raw HOST env (e.g. https://books.example.com)
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS or FRONTEND_URL

	Store             string // "mongo" or "memory"
	MongoURI          string
	MongoDatabase     string
	MongoCollection   string
	RedisURI          string
	PostgresURI       string // optional; activity log is disabled when empty
	TrustProxyHeaders bool   // honour X-Forwarded-For when running behind a reverse proxy

	OpenAIAPIType    string // "azure" or "openai"
	OpenAIAPIBase    string
	OpenAIAPIVersion string
	OpenAIAPIKey     string
	OpenAIDeployment string
	ReviewContext    int // model context window in tokens
	ReviewTimeout    time.Duration

	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
	SessionKey       string // base64-encoded 32 bytes; seals cached OAuth tokens
	DevUserID        string // fixed user when no identity provider is configured
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))
	host := getEnv("HOST", "http://localhost:8080")

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{getEnv("FRONTEND_URL", host)}
	}

	return &Config{
		Environment:    env,
		Port:           getEnv("PORT", "8080"),
		Host:           host,
		AllowedOrigins: allowedOrigins,

		Store:             strings.ToLower(getEnv("STORE", "mongo")),
		MongoURI:          getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017")),
		MongoDatabase:     getEnv("MONGODB_DATABASE", "BookJournal"),
		MongoCollection:   getEnv("MONGODB_COLLECTION", "JournalEntries"),
		RedisURI:          getEnv("REDIS_URI", "redis://localhost:6379/0"),
		PostgresURI:       getEnv("POSTGRES_URI", ""),
		TrustProxyHeaders: getBool("TRUST_PROXY_HEADERS", false),

		OpenAIAPIType:    strings.ToLower(getEnv("OPENAI_API_TYPE", "azure")),
		OpenAIAPIBase:    getEnv("OPENAI_API_BASE", ""),
		OpenAIAPIVersion: getEnv("OPENAI_API_VERSION", "2022-12-01"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIDeployment: getEnv("OPENAI_DEPLOYMENT", "davinci"),
		ReviewContext:    getInt("REVIEW_CONTEXT_TOKENS", 2049),
		ReviewTimeout:    time.Duration(getInt("REVIEW_TIMEOUT_SECONDS", 60)) * time.Second,

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", strings.TrimRight(host, "/")+"/auth/callback"),
		SessionKey:       getEnv("SESSION_KEY", ""),
		DevUserID:        getEnv("DEV_USER_ID", ""),
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// OIDCEnabled reports whether enough identity provider settings are present to run the sign-in flow.
func (c *Config) OIDCEnabled() bool {
	return c.OIDCIssuer != "" && c.OIDCClientID != ""
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}
