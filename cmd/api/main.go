// Package main implements the carfix API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/carfix-labs/carfix/engine/diagnose"
	"github.com/carfix-labs/carfix/engine/events"
	"github.com/carfix-labs/carfix/engine/fallback"
	"github.com/carfix-labs/carfix/engine/geo"
	"github.com/carfix-labs/carfix/engine/keywords"
	"github.com/carfix-labs/carfix/pkg/fn"
	"github.com/carfix-labs/carfix/pkg/metrics"
	"github.com/carfix-labs/carfix/pkg/mid"
	"github.com/carfix-labs/carfix/pkg/natsutil"
	"github.com/carfix-labs/carfix/pkg/resilience"
)

// Config holds all environment-based configuration.
type Config struct {
	Port       string
	CORSOrigin string

	// Knowledge store: memory, sqlite or neo4j.
	Store      string
	KBFile     string
	SQLitePath string
	Neo4jURL   string
	Neo4jUser  string
	Neo4jPass  string

	// Translator: none or libre. TranslateCache: none, lru or redis.
	Translator     string
	LibreURL       string
	LibreAPIKey    string
	TranslateRPS   float64
	TranslateCache string
	CacheSize      int
	RedisAddr      string
	RedisPassword  string

	// Fallback: none, offline or ollama.
	Fallback         string
	OllamaURL        string
	OllamaModel      string
	OllamaEmbedModel string
	QdrantURL        string
	Collection       string

	NATSURL string

	ScorePolicy    diagnose.Policy
	ScoreThreshold float64
	MaxResults     int
	AlwaysEnrich   bool
	InferVehicle   bool
	AdapterTimeout time.Duration
	AdapterRetries int

	RateLimit float64
	RateBurst int
}

func loadConfig() (Config, error) {
	cfg := Config{
		Port:             envOr("PORT", "8080"),
		CORSOrigin:       envOr("CORS_ORIGIN", "*"),
		Store:            envOr("STORE", "memory"),
		KBFile:           os.Getenv("KB_FILE"),
		SQLitePath:       envOr("SQLITE_PATH", "carfix.db"),
		Neo4jURL:         envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:        envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:        envOr("NEO4J_PASS", "password"),
		Translator:       envOr("TRANSLATOR", "none"),
		LibreURL:         envOr("LIBRE_URL", "http://localhost:5000"),
		LibreAPIKey:      os.Getenv("LIBRE_API_KEY"),
		TranslateCache:   envOr("TRANSLATE_CACHE", "lru"),
		RedisAddr:        envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		Fallback:         envOr("FALLBACK", "none"),
		OllamaURL:        envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:      envOr("OLLAMA_MODEL", "llama3.1"),
		OllamaEmbedModel: envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		QdrantURL:        os.Getenv("QDRANT_URL"),
		Collection:       envOr("QDRANT_COLLECTION", "carfix_issues"),
		NATSURL:          os.Getenv("NATS_URL"),
	}

	var err error
	if cfg.ScorePolicy, err = diagnose.ParsePolicy(os.Getenv("SCORE_POLICY")); err != nil {
		return Config{}, err
	}
	def := diagnose.DefaultOptions()
	parsers := []error{
		parseEnv("SCORE_THRESHOLD", &cfg.ScoreThreshold, def.Threshold, parseFloat),
		parseEnv("MAX_RESULTS", &cfg.MaxResults, def.MaxResults, strconv.Atoi),
		parseEnv("ALWAYS_ENRICH", &cfg.AlwaysEnrich, false, strconv.ParseBool),
		parseEnv("INFER_VEHICLE", &cfg.InferVehicle, false, strconv.ParseBool),
		parseEnv("ADAPTER_TIMEOUT", &cfg.AdapterTimeout, def.AdapterTimeout, time.ParseDuration),
		parseEnv("ADAPTER_RETRIES", &cfg.AdapterRetries, 1, strconv.Atoi),
		parseEnv("TRANSLATE_RPS", &cfg.TranslateRPS, 5, parseFloat),
		parseEnv("TRANSLATE_CACHE_SIZE", &cfg.CacheSize, 4096, strconv.Atoi),
		parseEnv("RATE_LIMIT", &cfg.RateLimit, 10, parseFloat),
		parseEnv("RATE_BURST", &cfg.RateBurst, 20, strconv.Atoi),
	}
	if err := errors.Join(parsers...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseEnv[T any](key string, dst *T, def T, parse func(string) (T, error)) error {
	v := os.Getenv(key)
	if v == "" {
		*dst = def
		return nil
	}
	parsed, err := parse(v)
	if err != nil {
		return fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	*dst = parsed
	return nil
}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

// diagnoseOptions maps configuration onto the matcher's knobs.
func (c Config) diagnoseOptions() diagnose.Options {
	opts := diagnose.DefaultOptions()
	opts.Policy = c.ScorePolicy
	opts.Threshold = c.ScoreThreshold
	opts.MaxResults = c.MaxResults
	opts.AlwaysEnrich = c.AlwaysEnrich
	opts.InferVehicle = c.InferVehicle
	opts.AdapterTimeout = c.AdapterTimeout
	opts.TranslateRetry = c.retry()
	return opts
}

func (c Config) retry() fn.RetryOpts {
	if c.AdapterRetries <= 1 {
		return fn.SingleAttempt
	}
	return fn.RetryOpts{MaxAttempts: c.AdapterRetries, InitialWait: 200 * time.Millisecond, MaxWait: time.Second, Jitter: true}
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(2)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.close()
	if stores.watch != nil {
		g.Go(func() error { return stores.watch(ctx) })
	}

	translator, closeTranslator, err := buildTranslator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTranslator()

	gen, closeGen, err := buildGenerator(cfg, logger)
	if err != nil {
		return err
	}
	defer closeGen()

	fbOpts := fallback.DefaultOptions()
	fbOpts.Timeout = cfg.AdapterTimeout
	fbOpts.Retry = cfg.retry()
	insights := fallback.NewAdapter(gen, logger, fbOpts)

	var fb diagnose.Fallback
	if cfg.Fallback != "none" {
		fb = insights
	}

	reg := metrics.New()
	reg.GaugeFunc("carfix_fallback_circuit_open", "1 while the generative provider circuit is open", func() float64 {
		if insights.BreakerState() == resilience.StateOpen {
			return 1
		}
		return 0
	})

	diag := diagnose.New(stores.issues, keywords.New(keywords.ProseTagger{}, logger), translator, fb, cfg.diagnoseOptions(), logger).
		WithMetrics(diagnose.NewMetrics(reg))

	var sink events.Sink = events.Nop{}
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "carfix-api", logger)
		if err != nil {
			return err
		}
		defer nc.Drain()
		sink = events.NewNATSSink(nc, logger)
	}

	srv := &server{
		diag:     diag,
		finder:   geo.NewFinder(stores.entities),
		entities: stores.entities,
		insights: insights,
		sink:     sink,
		reg:      reg,
		store:    cfg.Store,
		logger:   logger,
	}

	chain := []mid.Middleware{
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.OTel("carfix-api"),
		mid.CORS(cfg.CORSOrigin),
		mid.MaxBody(1 << 20),
	}
	if cfg.RateLimit > 0 {
		limiter, err := resilience.NewKeyedLimiter(resilience.LimiterOpts{Rate: cfg.RateLimit, Burst: cfg.RateBurst})
		if err != nil {
			return err
		}
		chain = append(chain, mid.RateLimit(limiter))
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mid.Chain(srv.routes(), chain...),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g.Go(func() error {
		logger.Info("api server starting", "port", cfg.Port, "store", cfg.Store, "translator", cfg.Translator, "fallback", cfg.Fallback)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	})

	return g.Wait()
}
