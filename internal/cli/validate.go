package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/upb/sorobai/backend/internal/codecheck"
)

var (
	validateType string
	validateJSON bool
)

// errContractInvalid makes the command exit non-zero when the contract has errors
var errContractInvalid = errors.New("contract has validation errors")

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a Soroban contract for antipatterns",
	Long: `Check Soroban contract code against the antipattern catalogue. The code is
read from the file argument, or from stdin when no file (or "-") is given.
Markdown with a rust code block is accepted as well as raw Rust.

Exits non-zero when the contract has errors. Warnings alone do not fail.

Example:
  sorobai validate contracts/token/src/lib.rs
  cat answer.md | sorobai validate --type token --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateType, "type", "t", "", "Contract type hint, e.g. token")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the report as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	code, err := readCode(cmd, args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(code) == "" {
		return errors.New("no code to validate")
	}

	report := codecheck.BuildReport(codecheck.NewValidator().Validate(code, validateType))

	out := cmd.OutOrStdout()
	if validateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	if !report.IsValid {
		return errContractInvalid
	}
	return nil
}

func readCode(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

func printReport(w io.Writer, r codecheck.Report) {
	fmt.Fprintf(w, "%s (strategy: %s)\n", r.Message, r.Strategy)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  ERROR   %s\n", e)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  WARNING %s\n", warn)
	}
}
