package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/upb/sorobai/backend/internal/mcp"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve SorobAI tools over the Model Context Protocol",
	Long: `Start an MCP server exposing ask_soroban and validate_contract.

By default the server speaks JSON-RPC over stdio so IDE agents can launch it
directly. With --port it serves streamable HTTP instead. Logs go to stderr.

Example:
  sorobai mcp
  sorobai mcp --port 8090`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "Serve streamable HTTP on this port instead of stdio")
}

func runMCP(cmd *cobra.Command, args []string) error {
	deps, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDeps(deps)

	server, err := mcpserver.NewServer(&mcpserver.Ports{
		Ask:       deps.Inference,
		Contracts: deps.Inference,
	}, deps.Config.Version, deps.Logger)
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		return server.RunHTTP(cmd.Context(), fmt.Sprintf(":%d", mcpPort))
	}
	return server.Run(cmd.Context())
}
