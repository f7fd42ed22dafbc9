package app

import (
	"net"
	"os"
)

type Config struct {
	// Bind host shared by both listeners
	Host       string
	WSPort     string
	HealthPort string

	LogLevel  string
	SentryDSN string

	// Model provider
	OpenAIAPIKey string
	OpenAIModel  string
}

func LoadConfigFromEnv() Config {
	return Config{
		Host:       getenv("WS_HOST", "0.0.0.0"),
		WSPort:     getenv("WS_PORT", "8765"),
		HealthPort: getenv("HEALTH_PORT", "8767"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		SentryDSN: getenv("SENTRY_DSN", ""),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"), // Required - no fallback
		OpenAIModel:  getenv("OPENAI_MODEL", "gpt-4o-mini"),
	}
}

// WSAddr is the bind address for the websocket listener.
func (c Config) WSAddr() string {
	return net.JoinHostPort(c.Host, c.WSPort)
}

// HealthAddr is the bind address for the health probe listener.
func (c Config) HealthAddr() string {
	return net.JoinHostPort(c.Host, c.HealthPort)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
