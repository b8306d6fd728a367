package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// Message is one entry of a ticket conversation.
type Message struct {
	Seq     int    `json:"seq"`
	Role    string `json:"role"`
	Content string `json:"content"`
	TS      string `json:"ts"`
}

// Ticket is a ticket with its full conversation.
type Ticket struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Text       string    `json:"text"`
	Status     string    `json:"status"`
	Sentiment  string    `json:"sentiment"`
	Priority   string    `json:"priority"`
	Tags       []string  `json:"tags"`
	CreatedAt  string    `json:"created_at"`
	UpdatedAt  string    `json:"updated_at"`
	Messages   []Message `json:"messages"`
}

// TicketSummary is a ticket row in a listing.
type TicketSummary struct {
	ID           string   `json:"id"`
	CustomerID   string   `json:"customer_id"`
	Text         string   `json:"text"`
	Status       string   `json:"status"`
	Sentiment    string   `json:"sentiment"`
	Priority     string   `json:"priority"`
	Tags         []string `json:"tags"`
	MessageCount int      `json:"message_count"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// Evidence is a retrieved chunk backing a suggestion.
type Evidence struct {
	ChunkID string  `json:"chunk_id"`
	Title   string  `json:"title"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// Suggestion is a drafted answer for a ticket.
type Suggestion struct {
	Answer     string     `json:"answer"`
	Steps      []string   `json:"steps"`
	Citations  []string   `json:"citations"`
	Confidence float64    `json:"confidence"`
	Evidence   []Evidence `json:"evidence"`
	Note       string     `json:"note,omitempty"`
}

// TicketsCmd groups the ticket commands.
func TicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tickets",
		Aliases: []string{"ticket", "t"},
		Short:   "Create, inspect and work on support tickets",
	}

	cmd.AddCommand(ticketsListCmd())
	cmd.AddCommand(ticketsGetCmd())
	cmd.AddCommand(ticketsCreateCmd())
	cmd.AddCommand(ticketsReplyCmd())
	cmd.AddCommand(ticketsResolveCmd())
	cmd.AddCommand(ticketsDeleteCmd())
	cmd.AddCommand(ticketsSuggestCmd())
	cmd.AddCommand(ticketsSummarizeCmd())
	cmd.AddCommand(ticketsWatchCmd())

	return cmd
}

func ticketsListCmd() *cobra.Command {
	var customerID, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			if customerID != "" {
				q.Set("customer_id", customerID)
			}
			if status != "" {
				q.Set("status", status)
			}
			path := "/tickets"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			resp, err := api.Get(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("failed to list tickets: %w", err)
			}
			var tickets []TicketSummary
			if err := decodeData(resp, &tickets, "tickets"); err != nil {
				return err
			}

			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), tickets)
			}
			printTicketTable(cmd.OutOrStdout(), tickets)
			return nil
		},
	}

	cmd.Flags().StringVar(&customerID, "customer", "", "Only tickets of this customer")
	cmd.Flags().StringVar(&status, "status", "", "Only tickets in this status (open|resolved)")

	return cmd
}

func printTicketTable(w io.Writer, tickets []TicketSummary) {
	if len(tickets) == 0 {
		fmt.Fprintln(w, "No tickets found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tSTATUS\tPRIORITY\tMSGS\tTEXT")
	for _, t := range tickets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", t.ID, t.CustomerID, t.Status, t.Priority, t.MessageCount, truncate(t.Text, 50))
	}
	_ = tw.Flush()
}

func ticketsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <ticket_id>",
		Aliases: []string{"view"},
		Short:   "Show a ticket and its conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchTicket(cmd, "GET", "/tickets/"+args[0], nil, "get ticket")
		},
	}
}

func ticketsCreateCmd() *cobra.Command {
	var customerID, text, idempotencyKey string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]string{"customer_id": customerID, "text": text}
			resp, err := api.PostWithOptions(cmd.Context(), "/tickets", body, RequestOptions{IdempotencyKey: idempotencyKey})
			if err != nil {
				return fmt.Errorf("failed to create ticket: %w", err)
			}
			return printTicketResponse(cmd, resp)
		},
	}

	cmd.Flags().StringVar(&customerID, "customer", "", "Customer ID")
	cmd.Flags().StringVarP(&text, "text", "m", "", "Opening message")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Reuse the ticket created earlier with this key")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func ticketsReplyCmd() *cobra.Command {
	var role, content string

	cmd := &cobra.Command{
		Use:   "reply <ticket_id>",
		Short: "Append a message to an open ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"role": role, "content": content}
			return fetchTicket(cmd, "POST", "/tickets/"+args[0]+"/reply", body, "reply")
		},
	}

	cmd.Flags().StringVar(&role, "role", "agent", "Author role (customer|agent)")
	cmd.Flags().StringVarP(&content, "message", "m", "", "Message text")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func ticketsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <ticket_id>",
		Short: "Mark a ticket as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchTicket(cmd, "POST", "/tickets/"+args[0]+"/resolve", nil, "resolve ticket")
		},
	}
}

func ticketsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <ticket_id>",
		Short: "Delete a resolved ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Delete(cmd.Context(), "/tickets/"+args[0])
			if err != nil {
				return fmt.Errorf("failed to delete ticket: %w", err)
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), resp.Data)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted ticket %s\n", args[0])
			return nil
		},
	}
}

func ticketsSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <ticket_id>",
		Short: "Draft an answer from the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post(cmd.Context(), "/tickets/"+args[0]+"/suggest", nil)
			if err != nil {
				return fmt.Errorf("failed to suggest: %w", err)
			}
			var s Suggestion
			if err := decodeData(resp, &s, "suggestion"); err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), s)
			}
			printSuggestion(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func printSuggestion(w io.Writer, s Suggestion) {
	fmt.Fprintln(w, s.Answer)
	if len(s.Steps) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Steps:")
		for i, step := range s.Steps {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Confidence: %.2f\n", s.Confidence)
	if len(s.Citations) > 0 {
		fmt.Fprintf(w, "Citations: %s\n", strings.Join(s.Citations, ", "))
	}
	if s.Note != "" {
		fmt.Fprintf(w, "Note: %s\n", s.Note)
	}
	for _, e := range s.Evidence {
		fmt.Fprintf(w, "  [%.3f] %s  %s\n", e.Score, e.ChunkID, truncate(e.Title, 60))
	}
}

func ticketsSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <ticket_id>",
		Short: "Summarize a ticket's conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post(cmd.Context(), "/tickets/"+args[0]+"/summarize", nil)
			if err != nil {
				return fmt.Errorf("failed to summarize: %w", err)
			}
			var out struct {
				Summary string `json:"summary"`
			}
			if err := decodeData(resp, &out, "summary"); err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Summary)
			return nil
		},
	}
}

func ticketsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <ticket_id>",
		Short: "Follow a ticket's changes as they happen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			asJSON := wantJSON(cmd)
			return api.StreamTicketEvents(cmd.Context(), args[0], func(ev StreamEvent) error {
				if asJSON {
					return printJSON(out, map[string]interface{}{"event": ev.Name, "data": ev.Data})
				}
				printStreamEvent(out, ev)
				return nil
			})
		},
	}
}

func printStreamEvent(w io.Writer, ev StreamEvent) {
	if ev.Name == "snapshot" {
		var t Ticket
		if err := json.Unmarshal(ev.Data, &t); err == nil {
			fmt.Fprintf(w, "snapshot: %s (%s, %d messages)\n", t.ID, t.Status, len(t.Messages))
			return
		}
	}

	var payload struct {
		Status  string   `json:"status"`
		Message *Message `json:"message"`
	}
	_ = json.Unmarshal(ev.Data, &payload)
	switch {
	case payload.Message != nil:
		fmt.Fprintf(w, "%s: [%s] %s\n", ev.Name, payload.Message.Role, payload.Message.Content)
	case payload.Status != "":
		fmt.Fprintf(w, "%s: status %s\n", ev.Name, payload.Status)
	default:
		fmt.Fprintln(w, ev.Name)
	}
}

func fetchTicket(cmd *cobra.Command, method, path string, body interface{}, what string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	var resp *APIResponse
	if method == "GET" {
		resp, err = api.Get(cmd.Context(), path)
	} else {
		resp, err = api.Post(cmd.Context(), path, body)
	}
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return printTicketResponse(cmd, resp)
}

func printTicketResponse(cmd *cobra.Command, resp *APIResponse) error {
	var t Ticket
	if err := decodeData(resp, &t, "ticket"); err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), t)
	}
	printTicket(cmd.OutOrStdout(), t)
	return nil
}

func printTicket(w io.Writer, t Ticket) {
	fmt.Fprintf(w, "Ticket: %s\n", t.ID)
	fmt.Fprintf(w, "Customer: %s\n", t.CustomerID)
	fmt.Fprintf(w, "Status: %s\n", t.Status)
	fmt.Fprintf(w, "Priority: %s  Sentiment: %s\n", t.Priority, t.Sentiment)
	if len(t.Tags) > 0 {
		fmt.Fprintf(w, "Tags: %s\n", strings.Join(t.Tags, ", "))
	}
	fmt.Fprintf(w, "Created: %s\n", t.CreatedAt)
	fmt.Fprintf(w, "Updated: %s\n", t.UpdatedAt)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "--- Conversation ---")
	for _, m := range t.Messages {
		fmt.Fprintf(w, "[%d] %s (%s): %s\n", m.Seq, m.Role, m.TS, m.Content)
	}
}
