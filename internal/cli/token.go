package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/upb/sorobai/backend/middleware"
)

var (
	tokenRoles []string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue an API bearer token",
	Long: `Sign an HS256 bearer token with AUTH_JWT_SECRET for calling the API.

Example:
  sorobai token web-frontend --ttl 720h
  sorobai token operator --role admin`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringSliceVarP(&tokenRoles, "role", "r", nil, "Role to grant (repeatable)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if !cfg.AuthEnabled() {
		return errors.New("AUTH_JWT_SECRET is not set")
	}
	if tokenTTL <= 0 {
		return errors.New("ttl must be positive")
	}

	token, err := middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer).IssueToken(args[0], tokenRoles, tokenTTL)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
