package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/services/ingest"
)

var ingestLang string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index documentation into the fragment store",
	Long: `Chunk, classify and embed docs/{es,en}/*.md and add the fragments to the
store. Existing fragments are kept; use reingest to rebuild from scratch.

Example:
  sorobai ingest
  sorobai ingest --lang en`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

var reingestCmd = &cobra.Command{
	Use:   "reingest",
	Short: "Clear the fragment store and index all documentation again",
	Args:  cobra.NoArgs,
	RunE:  runReingest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestLang, "lang", "l", "", "Only ingest one language: es or en")
}

func runIngest(cmd *cobra.Command, args []string) error {
	languages, err := ingestLanguages(ingestLang)
	if err != nil {
		return err
	}

	deps, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDeps(deps)

	out := cmd.OutOrStdout()
	for _, lang := range languages {
		stats, err := deps.Ingest.IngestLanguage(cmd.Context(), lang)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", lang, err)
		}
		printStats(out, stats)
	}
	return nil
}

func runReingest(cmd *cobra.Command, args []string) error {
	deps, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDeps(deps)

	result, err := deps.Ingest.Reingest(cmd.Context())
	if err != nil {
		return fmt.Errorf("reingest: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cleared %d fragments\n", result.Deleted)
	failed := 0
	for _, stats := range result.Languages {
		printStats(out, stats)
		if stats.Error != "" {
			failed++
		}
	}
	if failed == len(result.Languages) {
		return fmt.Errorf("reingest: every language failed")
	}
	return nil
}

func ingestLanguages(flag string) ([]models.Language, error) {
	if flag == "" {
		return ingest.Languages, nil
	}
	lang := models.Language(flag)
	if !lang.Valid() {
		return nil, fmt.Errorf("unsupported language %q: use es or en", flag)
	}
	return []models.Language{lang}, nil
}

func printStats(w io.Writer, s ingest.Stats) {
	fmt.Fprintf(w, "[%s] files=%d chunks=%d ingested=%d errors=%d (%.1f%%) in %s\n",
		s.Language, s.Files, s.Chunks, s.Ingested, s.Errors, s.SuccessRate(), s.Duration.Round(time.Millisecond))
	if s.Error != "" {
		fmt.Fprintf(w, "[%s] failed: %s\n", s.Language, s.Error)
	}
}
