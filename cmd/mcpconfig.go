package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragstack/ragdemo/internal/mcp"
)

var mcpConfigCmd = &cobra.Command{
	Use:   "mcp-config [path]",
	Short: "Validate an mcp.config.json file",
	Long: `Checks the IDE-facing MCP config for structural problems and for
environment variables that servers declare but which are not set in the
current environment. Substitution itself is left to the IDE.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMCPConfig,
}

func init() {
	rootCmd.AddCommand(mcpConfigCmd)
}

func runMCPConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := cfg.MCPConfigPath
	if len(args) == 1 {
		path = args[0]
	}

	file, err := mcp.LoadConfigFile(path)
	if err != nil {
		return err
	}

	issues := file.Validate(nil)
	if len(issues) == 0 {
		fmt.Printf("%s: OK (%d servers, %d prompts)\n", path, len(file.Servers), len(file.Prompts))
		return nil
	}

	for _, issue := range issues {
		fmt.Println(issue)
	}
	if mcp.HasErrors(issues) {
		return fmt.Errorf("%s has errors", path)
	}
	return nil
}
