package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dharmasatrya/flightoffers/internal/aggregator"
	"github.com/dharmasatrya/flightoffers/internal/engine"
	"github.com/dharmasatrya/flightoffers/internal/handler"
	"github.com/dharmasatrya/flightoffers/internal/history"
	"github.com/dharmasatrya/flightoffers/internal/providers"
	"github.com/dharmasatrya/flightoffers/internal/ratelimit"
	"github.com/dharmasatrya/flightoffers/internal/store"
)

type Config struct {
	Port               string
	RedisEnabled       bool
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	RedisTTL           time.Duration
	ProviderURL        string
	ProviderAPIKey     string
	ProviderFixture    string
	ProviderRPS        float64
	ProviderBurst      int
	ProviderMaxRetries int
	ProviderResultCap  int
	Currency           string
}

func main() {
	cfg := loadConfig()
	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	providerList, err := initializeProviders(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize providers: %v", err)
	}
	log.Printf("Initialized %d offer providers", len(providerList))

	rateLimiter := ratelimit.NewProviderLimiterWithDefaults()
	for _, p := range providerList {
		rateLimiter.Configure(p.Name(), ratelimit.Limit{
			RequestsPerSecond: cfg.ProviderRPS,
			BurstSize:         cfg.ProviderBurst,
		})
	}

	aggConfig := aggregator.Config{
		MaxRetries: cfg.ProviderMaxRetries,
		RetryDelays: []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
		},
		RateLimiter: rateLimiter,
	}
	agg := aggregator.NewAggregator(providerList, aggConfig)

	var kv store.KV
	if cfg.RedisEnabled {
		redisCfg := store.DefaultRedisConfig()
		redisCfg.Host = cfg.RedisHost
		redisCfg.Port = cfg.RedisPort
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB
		redisCfg.TTL = cfg.RedisTTL

		redisStore, err := store.NewRedisStore(redisCfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		kv = redisStore
		log.Printf("Redis store enabled (host: %s:%s, TTL: %v)", cfg.RedisHost, cfg.RedisPort, cfg.RedisTTL)
	} else {
		kv = store.NewMemoryStore()
		log.Println("Redis disabled, using in-memory store")
	}

	recent := history.NewRecentSearches(kv)
	manager := engine.NewManager(engine.Deps{
		Searcher:  agg,
		Store:     kv,
		Recent:    recent,
		Currency:  cfg.Currency,
		ResultCap: cfg.ProviderResultCap,
	})

	sessionHandler := handler.NewSessionHandler(manager, recent)

	api := e.Group("/api/v1")
	sessionHandler.Register(api)
	e.GET("/health", handler.HealthHandler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Starting offer engine server on port %s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server")

	if err := shutdown(e, kv, 10*time.Second); err != nil {
		log.Printf("Shutdown finished with errors: %v", err)
	}
}

// shutdown drains in-flight requests before closing the store they write to.
func shutdown(e *echo.Echo, kv store.KV, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return errors.Join(e.Shutdown(ctx), kv.Close())
}

func loadConfig() Config {
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		RedisEnabled:       getEnvBool("STORE_REDIS_ENABLED", false),
		RedisHost:          getEnv("REDIS_HOST", "localhost"),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisTTL:           getEnvDuration("REDIS_TTL", 0),
		ProviderURL:        getEnv("PROVIDER_URL", ""),
		ProviderAPIKey:     getEnv("PROVIDER_API_KEY", ""),
		ProviderFixture:    getEnv("PROVIDER_FIXTURE", "fixtures/offers.json"),
		ProviderRPS:        getEnvFloat("PROVIDER_RPS", 10),
		ProviderBurst:      getEnvInt("PROVIDER_BURST", 20),
		ProviderMaxRetries: getEnvInt("PROVIDER_MAX_RETRIES", 2),
		ProviderResultCap:  getEnvInt("PROVIDER_RESULT_CAP", 50),
		Currency:           getEnv("CURRENCY", "USD"),
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// initializeProviders uses the live endpoint when PROVIDER_URL is set and
// falls back to the bundled fixture otherwise.
func initializeProviders(cfg Config) ([]providers.Provider, error) {
	var providerList []providers.Provider

	if cfg.ProviderURL != "" {
		httpProvider, err := providers.NewHTTPProvider(providers.HTTPConfig{
			BaseURL: cfg.ProviderURL,
			APIKey:  cfg.ProviderAPIKey,
		})
		if err != nil {
			return nil, err
		}
		providerList = append(providerList, httpProvider)
		return providerList, nil
	}

	static, err := providers.NewStaticProviderFromFile(cfg.ProviderFixture, 300*time.Millisecond)
	if err != nil {
		return nil, err
	}
	providerList = append(providerList, static)

	return providerList, nil
}
