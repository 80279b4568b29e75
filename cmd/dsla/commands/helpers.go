package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dsla-ai/dsla/internal/adapter"
	"github.com/dsla-ai/dsla/internal/embedder"
	"github.com/dsla-ai/dsla/internal/rag"
	"github.com/dsla-ai/dsla/internal/router"
)

// Default persistence locations, overridable via DSLA_INDEX_PATH and
// DSLA_MEMORY_DB.
const (
	defaultIndexPath = "./data/index"
	defaultMemoryDB  = "./data/memory.db"
)

// legalKeywords and tradingKeywords are the routing vocabularies for the
// built-in domains.
var (
	legalKeywords   = []string{"legal", "contract", "agreement", "clause", "compliance", "law", "document"}
	tradingKeywords = []string{"trading", "trade", "market", "stock", "crypto", "portfolio", "finance", "investment"}
)

// buildRouter constructs a Router with the built-in domain adapters
// registered under their routing keywords.
func buildRouter() *router.Router {
	rt := router.New()
	rt.Register(adapter.NewLegalDoc(), legalKeywords)
	rt.Register(adapter.NewTradingOps(), tradingKeywords)
	return rt
}

// buildEngine constructs the retrieval engine from the environment: the
// embedding backend from EMBEDDING_*, the index path from DSLA_INDEX_PATH,
// and the index backend from DSLA_INDEX_BACKEND.
func buildEngine(log *slog.Logger) (*rag.Engine, error) {
	embCfg := embedder.ConfigFromEnv()
	if err := embedder.Validate(embCfg, log); err != nil {
		return nil, err
	}

	emb, err := embedder.New(embCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("backend", embCfg.Backend),
		slog.Int("dimensions", emb.Dimensions()),
	)

	engine, err := rag.New(&rag.Config{
		Embedder:  emb,
		IndexPath: getEnvOrDefault("DSLA_INDEX_PATH", defaultIndexPath),
		Backend:   rag.BackendKind(os.Getenv("DSLA_INDEX_BACKEND")),
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise retrieval engine: %w", err)
	}

	if engine.Degraded() {
		log.Warn("exact index backend unavailable, using linear scan")
	}
	return engine, nil
}

// getEnvOrDefault returns the env var value or fallback when unset/empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when
// unset or malformed.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
