package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dsla-ai/dsla/internal/logging"
)

// NewSearchCmd constructs the `dsla search` command, which queries the
// local retrieval index from the command line.
func NewSearchCmd() *cobra.Command {
	var topK int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the retrieval index",
		Long: `Embed the query and return the nearest indexed documents by squared
L2 distance (smaller is closer).

Examples:
  dsla search "termination clause obligations"
  dsla search --top-k 3 --json "portfolio risk"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			engine, err := buildEngine(log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if engine.Len() == 0 {
				return fmt.Errorf("search: index is empty; run 'dsla ingest' first")
			}

			query := strings.Join(args, " ")
			results, err := engine.Search(ctx, query, topK)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}

			for i, res := range results {
				fmt.Printf("%d. (distance %.4f) %s\n", i+1, res.Distance, res.Text)
				if len(res.Metadata) > 0 {
					meta, _ := json.Marshal(res.Metadata)
					fmt.Printf("   metadata: %s\n", meta)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of results to return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}
