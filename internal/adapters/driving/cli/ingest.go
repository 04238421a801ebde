package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/agora/internal/adapters/driving/watch"
	"github.com/custodia-labs/agora/internal/core/domain"
)

var (
	ingestDomains    []string
	ingestMultimodal bool
	ingestNoMulti    bool
	ingestStats      bool
	ingestWatch      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest domain PDFs into the knowledge base",
	Long: `Processes every PDF in the domain folders under the configured PDF root
(one folder per domain) into the domain's paper collection. Documents already
present in a collection are skipped, so re-running only ingests new files.

With --multimodal, figures (described by the vision model and split into
panels) and equations are extracted alongside the text. --no-multimodal
turns this off and wins over --multimodal.

Examples:
  agora ingest
  agora ingest --domain nanofluidics --domain biology
  agora ingest --no-multimodal
  agora ingest --stats
  agora ingest --domain biology --watch`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVarP(&ingestDomains, "domain", "d", nil, "domain to ingest (repeatable, default all)")
	ingestCmd.Flags().BoolVar(&ingestMultimodal, "multimodal", true, "extract figures and equations")
	ingestCmd.Flags().BoolVar(&ingestNoMulti, "no-multimodal", false, "text only, skip figures and equations")
	ingestCmd.Flags().BoolVar(&ingestStats, "stats", false, "show collection statistics without ingesting")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep running and ingest PDFs added to the domain folders")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	ctx := commandContext(cmd)

	if ingestStats {
		stats, err := ingestService.Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to read collection stats: %w", err)
		}
		printCollectionStats(cmd, stats)
		return nil
	}

	domains, err := parseDomains(ingestDomains)
	if err != nil {
		return err
	}
	multimodal := ingestMultimodal && !ingestNoMulti

	summary, err := ingestService.Ingest(ctx, domain.IngestOptions{Domains: domains, Multimodal: multimodal})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	printIngestSummary(cmd, summary)

	if !ingestWatch {
		return nil
	}
	if pdfRoot == "" {
		return errors.New("pdf root not configured")
	}

	w, err := watch.New(ingestService, watch.Config{
		PDFRoot:    pdfRoot,
		Domains:    domains,
		Multimodal: multimodal,
		OnSummary:  func(s *domain.IngestSummary) { printIngestSummary(cmd, s) },
	})
	if err != nil {
		return err
	}
	cmd.Println(mutedStyle.Render(fmt.Sprintf("Watching %s for new PDFs (Ctrl+C to stop)", pdfRoot)))
	return w.Run(ctx)
}

// parseDomains converts flag values into concrete domains. "all" expands
// to every domain and an empty list means every domain.
func parseDomains(names []string) ([]domain.KnowledgeDomain, error) {
	var out []domain.KnowledgeDomain
	seen := make(map[domain.KnowledgeDomain]bool)
	for _, name := range names {
		d, err := domain.ParseDomain(name)
		if err != nil {
			return nil, err
		}
		for _, e := range d.Expand() {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func printIngestSummary(cmd *cobra.Command, summary *domain.IngestSummary) {
	if summary == nil || len(summary.Domains) == 0 {
		cmd.Println("Nothing to ingest.")
		return
	}

	rows := make([][]string, 0, len(summary.Domains))
	for _, d := range summary.Domains {
		rows = append(rows, []string{
			d.Domain.String(),
			strconv.Itoa(d.Seen),
			strconv.Itoa(d.Skipped),
			strconv.Itoa(d.Ingested),
			strconv.Itoa(d.ChunksAdded),
			strconv.Itoa(d.Errors),
		})
	}
	cmd.Println(headingStyle.Render("Ingestion summary"))
	cmd.Println(renderTable([]string{"Domain", "Seen", "Skipped", "Ingested", "Chunks", "Errors"}, rows))

	for _, d := range summary.Domains {
		names := make([]string, 0, len(d.Failures))
		for name := range d.Failures {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cmd.Println(warnStyle.Render("  failed: ") + fmt.Sprintf("%s/%s: %s", d.Domain, name, d.Failures[name]))
		}
	}
	cmd.Printf("Added %d chunks.\n", summary.TotalChunks())
}

func printCollectionStats(cmd *cobra.Command, stats []domain.CollectionStats) {
	rows := make([][]string, 0, len(stats))
	total := 0
	for _, s := range stats {
		rows = append(rows, []string{
			s.Name,
			s.Description,
			strconv.Itoa(s.Documents),
			strconv.Itoa(s.Count),
		})
		total += s.Count
	}
	cmd.Println(headingStyle.Render("Knowledge base collections"))
	cmd.Println(renderTable([]string{"Collection", "Domain", "Documents", "Chunks"}, rows))
	cmd.Printf("Total chunks: %d\n", total)
}
