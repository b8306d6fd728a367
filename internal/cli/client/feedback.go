package client

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// GapReport is the knowledge gap analysis returned by the API.
type GapReport struct {
	Total    int     `json:"total"`
	Rejected int     `json:"rejected"`
	GapRate  float64 `json:"gap_rate"`
	Gaps     []struct {
		Query      string `json:"query"`
		Comment    string `json:"comment"`
		RecordedAt string `json:"recorded_at"`
	} `json:"gaps"`
	Chunks []struct {
		ChunkID  string `json:"chunk_id"`
		Accepted int    `json:"accepted"`
		Rejected int    `json:"rejected"`
		Exists   bool   `json:"exists"`
	} `json:"chunks"`
}

// FeedbackCmd records whether an agent accepted a suggestion.
func FeedbackCmd() *cobra.Command {
	var (
		ticketText string
		accepted   bool
		rejected   bool
		comment    string
		citations  []string
	)

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record feedback on a suggestion",
		Long: `Records whether a suggestion was accepted. Rejections feed the knowledge gap
report; pass the chunk ids the suggestion cited with --citation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if accepted == rejected {
				return fmt.Errorf("exactly one of --accepted or --rejected is required")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]interface{}{
				"ticket_text":    ticketText,
				"accepted":       accepted,
				"comment":        comment,
				"used_citations": citations,
			}
			resp, err := api.Post(cmd.Context(), "/feedback", body)
			if err != nil {
				return fmt.Errorf("failed to record feedback: %w", err)
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), resp.Data)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Feedback recorded")
			return nil
		},
	}

	cmd.Flags().StringVar(&ticketText, "ticket-text", "", "Text of the ticket the suggestion answered")
	cmd.Flags().BoolVar(&accepted, "accepted", false, "The suggestion was used")
	cmd.Flags().BoolVar(&rejected, "rejected", false, "The suggestion was not used")
	cmd.Flags().StringVar(&comment, "comment", "", "Why the suggestion missed")
	cmd.Flags().StringSliceVar(&citations, "citation", nil, "Chunk id cited by the suggestion (repeatable)")
	_ = cmd.MarkFlagRequired("ticket-text")

	return cmd
}

// GapsCmd prints the knowledge gap report.
func GapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gaps",
		Short: "Show questions the knowledge base failed to answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get(cmd.Context(), "/analytics/gaps")
			if err != nil {
				return fmt.Errorf("failed to get gap report: %w", err)
			}
			var report GapReport
			if err := decodeData(resp, &report, "gap report"); err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), report)
			}
			printGapReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func printGapReport(w io.Writer, r GapReport) {
	fmt.Fprintf(w, "Feedback: %d total, %d rejected (gap rate %.1f%%)\n", r.Total, r.Rejected, r.GapRate*100)

	if len(r.Gaps) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recent gaps:")
		for _, g := range r.Gaps {
			line := truncate(g.Query, 70)
			if g.Comment != "" {
				line += "  (" + truncate(g.Comment, 40) + ")"
			}
			fmt.Fprintf(w, "  %s  %s\n", g.RecordedAt, line)
		}
	}

	if len(r.Chunks) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CHUNK\tACCEPTED\tREJECTED\tEXISTS")
		for _, c := range r.Chunks {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%t\n", c.ChunkID, c.Accepted, c.Rejected, c.Exists)
		}
		_ = tw.Flush()
	}
}

// TranslateCmd translates free text.
func TranslateCmd() *cobra.Command {
	var targetLang string

	cmd := &cobra.Command{
		Use:   "translate <text>",
		Short: "Translate text into another language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			body := map[string]string{"text": args[0], "target_lang": targetLang}
			resp, err := api.Post(cmd.Context(), "/translate", body)
			if err != nil {
				return fmt.Errorf("failed to translate: %w", err)
			}
			var out struct {
				TranslatedText string `json:"translated_text"`
			}
			if err := decodeData(resp, &out, "translation"); err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.TranslatedText)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetLang, "to", "t", "", "Target language, e.g. es or German")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
