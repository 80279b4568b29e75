package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dsla-ai/dsla/internal/embedder"
	"github.com/dsla-ai/dsla/internal/logging"
	"github.com/dsla-ai/dsla/internal/memory"
	"github.com/dsla-ai/dsla/internal/server"
)

// NewServeCmd constructs the `dsla serve` command, which starts the HTTP
// server exposing the adaptation, retrieval, and memory APIs.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the DSLA HTTP server",
		Long: `Start the DSLA HTTP server on localhost.

The server exposes domain adaptation (/api/adapt, /api/run), adapter
listing (/api/adapters), structured memory (/api/memory/*), and document
retrieval (/api/rag/*) endpoints, plus health, readiness, and Prometheus
metrics.

Examples:
  dsla serve
  dsla serve --port 9090
  EMBEDDING_BACKEND=ollama dsla serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting",
				slog.String("embedding_backend", getEnvOrDefault("EMBEDDING_BACKEND", "local")),
			)

			engine, err := buildEngine(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			dbPath := getEnvOrDefault("DSLA_MEMORY_DB", defaultMemoryDB)
			mem, err := memory.Open(dbPath)
			if err != nil {
				return fmt.Errorf("serve: failed to open memory store: %w", err)
			}
			defer func() { _ = mem.Close() }()
			log.Info("memory store opened", slog.String("path", dbPath))

			pingers := []server.Pinger{server.NewMemoryPinger(mem)}
			if getEnvOrDefault("EMBEDDING_BACKEND", "local") == embedder.BackendOllama {
				pingers = append(pingers, server.NewOllamaPinger(
					getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
				))
			}

			srv, err := server.New(engine, buildRouter(), mem, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("DSLA_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", getEnvOrDefault("DSLA_HOST", "127.0.0.1"), "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", getEnvInt("DSLA_PORT", 8000), "TCP port to listen on")

	return cmd
}
