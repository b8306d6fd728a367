package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RecommendCmd drafts an answer for text that was never filed as a ticket.
func RecommendCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "recommend <ticket text>",
		Short: "Draft an answer for free ticket text",
		Long: `Retrieves knowledge for the given text and drafts an answer without creating
a ticket. Words after the command are joined into one text.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("ticket text must not be empty")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]interface{}{"ticket_text": text}
			if topK > 0 {
				body["top_k"] = topK
			}
			resp, err := api.Post(cmd.Context(), "/recommend", body)
			if err != nil {
				return fmt.Errorf("failed to recommend: %w", err)
			}
			var s Suggestion
			if err := decodeData(resp, &s, "recommendation"); err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), s)
			}
			printSuggestion(cmd.OutOrStdout(), s)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Chunks to retrieve (server default when 0)")

	return cmd
}
