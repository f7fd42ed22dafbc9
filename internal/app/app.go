package app

import (
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/mzelinka/attune/internal/httpapi"
	"github.com/mzelinka/attune/internal/llm"
)

type App struct {
	cfg    Config
	logger *log.Logger
	router *httpapi.Router
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}

	// Shared HTTP client with connection pooling. Keeps TCP connections
	// alive to reduce latency for repeated calls to the provider.
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10, // Single provider host
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		Model:      cfg.OpenAIModel,
		HTTPClient: httpClient,
	})

	router := httpapi.NewRouter(httpapi.RouterConfig{
		OpenAIAPIKey: cfg.OpenAIAPIKey,
	}, logger, client)

	return &App{
		cfg:    cfg,
		logger: logger,
		router: router,
	}, nil
}

// SessionHandler is the handler for the websocket listener.
func (a *App) SessionHandler() http.Handler {
	return a.router.SessionHandler()
}

// HealthHandler is the handler for the probe listener.
func (a *App) HealthHandler() http.Handler {
	return a.router.HealthHandler()
}
