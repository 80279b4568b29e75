package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dsla-ai/dsla/internal/logging"
)

// NewIngestCmd constructs the `dsla ingest` command, which indexes text
// files into the local retrieval index.
func NewIngestCmd() *cobra.Command {
	var files []string
	var texts []string
	var domain string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index documents into the retrieval index",
		Long: `Embed documents and add them to the local retrieval index. Each
--file becomes one document with its path stored as metadata; each --text
is indexed verbatim. An optional domain label is stored alongside and
returned with search results.

The index location is taken from DSLA_INDEX_PATH (default: ./data/index)
and the embedding backend from EMBEDDING_BACKEND (default: local).

Examples:
  dsla ingest --file notes/contract-law.txt
  dsla ingest --text "Support levels hold until volume confirms a break."
  dsla ingest --domain trading_ops --file docs/risk.txt --file docs/sizing.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if len(files) == 0 && len(texts) == 0 {
				return fmt.Errorf("ingest: at least one --file or --text is required")
			}

			engine, err := buildEngine(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			docs := make([]string, 0, len(files))
			meta := make([]map[string]any, 0, len(files))
			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("ingest: read %s: %w", path, err)
				}
				text := strings.TrimSpace(string(data))
				if text == "" {
					log.Warn("skipping empty file", slog.String("path", path))
					continue
				}

				m := map[string]any{"source": filepath.Clean(path)}
				if domain != "" {
					m["domain"] = domain
				}
				docs = append(docs, text)
				meta = append(meta, m)
			}
			for _, text := range texts {
				text = strings.TrimSpace(text)
				if text == "" {
					log.Warn("skipping empty --text argument")
					continue
				}
				m := map[string]any{}
				if domain != "" {
					m["domain"] = domain
				}
				docs = append(docs, text)
				meta = append(meta, m)
			}
			if len(docs) == 0 {
				return fmt.Errorf("ingest: no non-empty documents to index")
			}

			if err := engine.Add(ctx, docs, meta); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if err := engine.Save(); err != nil {
				return fmt.Errorf("ingest: failed to persist index: %w", err)
			}

			log.Info("ingestion complete",
				slog.Int("documents", len(docs)),
				slog.Int("indexed_total", engine.Len()),
			)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Text file to index (repeatable)")
	cmd.Flags().StringArrayVarP(&texts, "text", "t", nil, "Literal document text to index (repeatable)")
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "Optional domain label stored in document metadata")

	return cmd
}
