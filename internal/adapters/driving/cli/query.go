package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/agora/internal/core/domain"
)

var (
	queryDomain string
	queryTopK   int
	queryJSON   bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text] [domain] [top_k]",
	Short: "Query the knowledge base",
	Long: `Returns the paper sections nearest to the query text. With --domain all,
each domain contributes its own top results.

The domain and result count may also follow the text as positional
arguments, in which case they take precedence over the flags. Quote
multi-word queries that end in a domain name or a number.

Examples:
  agora query "debye length"
  agora query "debye length" nanofluidics 3
  agora query --domain biology -k 3 ion channel gating`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryDomain, "domain", "d", string(domain.DomainAll), "domain to query")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "results per domain (default from settings)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}
	text, domainArg, topK, err := splitQueryArgs(args)
	if err != nil {
		return err
	}
	if domainArg == "" {
		domainArg = queryDomain
	}
	if topK == 0 {
		topK = queryTopK
	}

	d, err := domain.ParseDomain(domainArg)
	if err != nil {
		return err
	}

	results, err := retrievalService.Query(commandContext(cmd), text, d, topK)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, results)
	}
	if len(results) == 0 {
		cmd.Printf("No relevant information found in %s knowledge base for: %s\n", d, text)
		return nil
	}
	cmd.Println(retrievalService.FormatResults(results))
	return nil
}

// splitQueryArgs peels an optional trailing top_k and domain off the
// positional arguments. The first argument is always query text.
func splitQueryArgs(args []string) (text, domainArg string, topK int, err error) {
	rest := args
	if len(rest) > 1 {
		if k, convErr := strconv.Atoi(rest[len(rest)-1]); convErr == nil {
			if k < 1 {
				return "", "", 0, fmt.Errorf("%w: top_k must be at least 1, got %d", domain.ErrInvalidInput, k)
			}
			topK = k
			rest = rest[:len(rest)-1]
		}
	}
	if len(rest) > 1 {
		if _, parseErr := domain.ParseDomain(rest[len(rest)-1]); parseErr == nil {
			domainArg = rest[len(rest)-1]
			rest = rest[:len(rest)-1]
		}
	}
	return strings.Join(rest, " "), domainArg, topK, nil
}

func outputQueryJSON(cmd *cobra.Command, results []domain.RetrievedChunk) error {
	type hit struct {
		ID         string         `json:"id"`
		Domain     string         `json:"domain"`
		Similarity float64        `json:"similarity"`
		Text       string         `json:"text"`
		Metadata   map[string]any `json:"metadata"`
	}
	hits := make([]hit, len(results))
	for i, r := range results {
		hits[i] = hit{
			ID:         r.ID,
			Domain:     r.Domain.String(),
			Similarity: r.Similarity(),
			Text:       r.Text,
			Metadata:   r.Metadata,
		}
	}
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
