package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/carfix-labs/carfix/engine/fallback"
	"github.com/carfix-labs/carfix/engine/graph"
	"github.com/carfix-labs/carfix/engine/knowledge"
	"github.com/carfix-labs/carfix/engine/lang"
	"github.com/carfix-labs/carfix/engine/semantic"
	"github.com/carfix-labs/carfix/engine/sqlstore"
	"github.com/carfix-labs/carfix/pkg/ollama"
)

type stores struct {
	issues   knowledge.IssueStore
	entities knowledge.EntityStore
	// watch, when set, keeps a file-backed catalog fresh until ctx is done.
	watch   func(ctx context.Context) error
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg Config, logger *slog.Logger) (*stores, error) {
	switch cfg.Store {
	case "memory":
		var (
			c   *knowledge.Catalog
			err error
		)
		if cfg.KBFile != "" {
			c, err = knowledge.LoadFile(cfg.KBFile)
		} else {
			c, err = knowledge.Seed()
		}
		if err != nil {
			return nil, err
		}
		mem := knowledge.NewMemory(c)
		s := &stores{issues: mem, entities: mem}
		if cfg.KBFile != "" {
			s.watch = func(ctx context.Context) error {
				return knowledge.Watch(ctx, cfg.KBFile, mem, logger)
			}
		}
		logger.Info("knowledge loaded", "issues", len(c.Issues), "centers", len(c.Centers), "tow_operators", len(c.TowOperators))
		return s, nil

	case "sqlite":
		db, err := sqlstore.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return &stores{issues: db, entities: db, closers: []func(){func() { _ = db.Close() }}}, nil

	case "neo4j":
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return nil, fmt.Errorf("neo4j driver: %w", err)
		}
		if err := driver.VerifyConnectivity(ctx); err != nil {
			_ = driver.Close(ctx)
			return nil, fmt.Errorf("neo4j connect: %w", err)
		}
		g := graph.New(driver, logger)
		return &stores{
			issues:   g,
			entities: g,
			closers:  []func(){func() { _ = driver.Close(context.Background()) }},
		}, nil
	}
	return nil, fmt.Errorf("config: unknown STORE %q", cfg.Store)
}

func buildTranslator(ctx context.Context, cfg Config, logger *slog.Logger) (lang.Translator, func(), error) {
	noop := func() {}
	switch cfg.Translator {
	case "none":
		return lang.PassThrough{}, noop, nil
	case "libre":
	default:
		return nil, noop, fmt.Errorf("config: unknown TRANSLATOR %q", cfg.Translator)
	}

	var next lang.Translator = lang.NewLibreClient(cfg.LibreURL, cfg.LibreAPIKey, lang.WithRateLimit(cfg.TranslateRPS, max(1, int(cfg.TranslateRPS))))

	switch cfg.TranslateCache {
	case "none":
		return next, noop, nil
	case "lru":
		c, err := lang.NewLRUCache(cfg.CacheSize)
		if err != nil {
			return nil, noop, err
		}
		return lang.NewCached(next, c, logger), noop, nil
	case "redis":
		c, err := lang.DialRedis(ctx, lang.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			return nil, noop, err
		}
		return lang.NewCached(next, c, logger), func() { _ = c.Close() }, nil
	}
	return nil, noop, fmt.Errorf("config: unknown TRANSLATE_CACHE %q", cfg.TranslateCache)
}

// buildGenerator picks the generative provider. "none" still yields Offline
// so the tips endpoints answer; diagnosis fallback is disabled in run.
func buildGenerator(cfg Config, logger *slog.Logger) (fallback.Generator, func(), error) {
	noop := func() {}
	switch cfg.Fallback {
	case "none", "offline":
		return fallback.Offline{}, noop, nil
	case "ollama":
	default:
		return nil, noop, fmt.Errorf("config: unknown FALLBACK %q", cfg.Fallback)
	}

	opts := []fallback.GeneratorOption{fallback.WithLogger(logger)}
	closer := noop
	if cfg.QdrantURL != "" {
		idx, err := semantic.New(cfg.QdrantURL, cfg.Collection)
		if err != nil {
			return nil, noop, err
		}
		closer = func() { _ = idx.Close() }
		opts = append(opts, fallback.WithIssueContext(ollama.NewEmbedClient(cfg.OllamaURL, cfg.OllamaEmbedModel), idx, 3))
	}
	return fallback.NewOllamaGenerator(ollama.NewChatClient(cfg.OllamaURL, cfg.OllamaModel), opts...), closer, nil
}
