package client

import (
	"github.com/cloo-solutions/ticketassist/internal/cli"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the ticketassist command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ticketassist",
		Short: "ticketassist CLI - support tickets with knowledge-backed answer drafts",
		Long: `ticketassist talks to a ticketassistd server over HTTP.

Environment variables:
  TICKETASSIST_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(TicketsCmd())
	rootCmd.AddCommand(KnowledgeCmd())
	rootCmd.AddCommand(RecommendCmd())
	rootCmd.AddCommand(FeedbackCmd())
	rootCmd.AddCommand(GapsCmd())
	rootCmd.AddCommand(TranslateCmd())
	rootCmd.AddCommand(ConfigCmd())

	return rootCmd
}
