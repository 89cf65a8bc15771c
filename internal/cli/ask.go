package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/upb/sorobai/backend/models"
	"github.com/upb/sorobai/backend/services/inference"
)

var (
	askMode     string
	askK        int
	askLang     string
	askCodeOnly bool
	askStream   bool
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Ask a question from the terminal",
	Long: `Run one question through the retrieval pipeline and print the answer with
its sources. Code answers are validated and regenerated once when they fail.

Example:
  sorobai ask "contrato de token con mint y burn"
  sorobai ask "what is a TTL?" --mode explain --lang en
  sorobai ask "token contract" --stream`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMode, "mode", "m", "code", "Answer mode: code or explain")
	askCmd.Flags().IntVarP(&askK, "top-k", "k", 0, "Fragments to use as context (default from RETRIEVAL_DEFAULT_K)")
	askCmd.Flags().StringVarP(&askLang, "lang", "l", "", "Answer language: es or en (detected when empty)")
	askCmd.Flags().BoolVar(&askCodeOnly, "code-only", false, "Return only the code block")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "Print tokens as they are generated")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	deps, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDeps(deps)

	req := &inference.AskRequest{
		RequestID: uuid.NewString(),
		Query:     args[0],
		Mode:      inference.Mode(askMode),
		K:         askK,
		CodeOnly:  askCodeOnly,
		Language:  models.Language(askLang),
		UserAgent: "sorobai-cli",
	}
	out := cmd.OutOrStdout()

	if askStream {
		return deps.Inference.AskStream(cmd.Context(), req, streamPrinter(out))
	}

	resp, err := deps.Inference.Ask(cmd.Context(), req)
	if err != nil {
		return err
	}
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printAnswer(out, resp)
	return nil
}

// streamPrinter writes tokens as they arrive and the sources at the end
func streamPrinter(w io.Writer) inference.StreamFunc {
	var sources []inference.Source
	return func(e inference.StreamEvent) error {
		switch e.Type {
		case inference.EventSources:
			sources = e.Sources
		case inference.EventToken:
			_, err := io.WriteString(w, e.Token)
			return err
		case inference.EventDone:
			fmt.Fprintln(w)
			printSources(w, sources)
		case inference.EventError:
			return fmt.Errorf("generation failed: %s", e.Error)
		}
		return nil
	}
}

func printAnswer(w io.Writer, resp *inference.AskResponse) {
	fmt.Fprintln(w, resp.Answer)
	printSources(w, resp.Sources)

	if v := resp.Validation; v != nil {
		status := "valid"
		if !v.IsValid {
			status = fmt.Sprintf("%d errors", len(v.Errors))
		}
		if v.Regenerated {
			status += ", regenerated"
		}
		fmt.Fprintf(w, "\nValidation: %s, %d warnings\n", status, len(v.Warnings))
	}
	fmt.Fprintf(w, "\n%s | %d tokens | %dms\n", resp.Model, resp.Tokens.TotalTokens, resp.LatencyMs)
}

func printSources(w io.Writer, sources []inference.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for i, s := range sources {
		fmt.Fprintf(w, "  %d. %s > %s (%s, %.2f)\n", i+1, s.File, s.Section, s.Topic, s.Score)
	}
}
