package client

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// Chunk is a stored knowledge chunk as listed by the API.
type Chunk struct {
	ID             string `json:"id"`
	DocumentID     string `json:"document_id,omitempty"`
	ChunkIndex     int    `json:"chunk_index"`
	Title          string `json:"title"`
	Text           string `json:"text"`
	EmbeddingModel string `json:"embedding_model"`
	CreatedAt      string `json:"created_at"`
}

// ChunkPage is one page of a chunk listing.
type ChunkPage struct {
	Items   []Chunk `json:"items"`
	Cursor  string  `json:"cursor,omitempty"`
	HasMore bool    `json:"has_more"`
}

// UploadResult reports the outcome of a document upload.
type UploadResult struct {
	Status      string `json:"status"`
	ChunksAdded int    `json:"chunks_added"`
	DocumentID  string `json:"document_id"`
	Error       string `json:"error,omitempty"`
}

// KnowledgeCmd groups the knowledge base commands.
func KnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "knowledge",
		Aliases: []string{"kb"},
		Short:   "Manage the knowledge base",
	}

	cmd.AddCommand(knowledgeListCmd())
	cmd.AddCommand(knowledgeUploadCmd())
	cmd.AddCommand(knowledgeAddCmd())
	cmd.AddCommand(knowledgeDocumentCmd())
	cmd.AddCommand(knowledgeDeleteCmd())

	return cmd
}

func knowledgeListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge chunks in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			resp, err := api.Get(cmd.Context(), "/knowledge?"+q.Encode())
			if err != nil {
				return fmt.Errorf("failed to list knowledge: %w", err)
			}

			var page ChunkPage
			if err := decodeData(resp, &page, "knowledge"); err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), page)
			}
			printChunkPage(cmd.OutOrStdout(), page)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of chunks")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func printChunkPage(w io.Writer, page ChunkPage) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No knowledge chunks found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMODEL\tTEXT")
	for _, c := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, truncate(c.Title, 30), c.EmbeddingModel, truncate(c.Text, 50))
	}
	_ = tw.Flush()
	if page.HasMore {
		fmt.Fprintf(w, "\nMore results: --cursor %s\n", page.Cursor)
	}
}

func knowledgeUploadCmd() *cobra.Command {
	var textFile string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Ingest a document into the knowledge base",
		Long: `Uploads a document for chunking and embedding. Plain text and markdown are
decoded by the server; for other formats pass the extracted text with --text-file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var text string
			if textFile != "" {
				raw, err := os.ReadFile(textFile)
				if err != nil {
					return fmt.Errorf("failed to read text file: %w", err)
				}
				text = string(raw)
			}

			resp, err := api.UploadDocument(cmd.Context(), args[0], text, nil)
			if err != nil {
				return fmt.Errorf("failed to upload: %w", err)
			}
			var result UploadResult
			if err := decodeData(resp, &result, "upload result"); err != nil {
				return err
			}

			if wantJSON(cmd) {
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else if result.Status == "success" {
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s: %d chunks (document %s)\n", args[0], result.ChunksAdded, result.DocumentID)
			}
			if result.Status != "success" {
				return fmt.Errorf("ingestion failed: %s", result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&textFile, "text-file", "", "File holding the document's extracted text")

	return cmd
}

func knowledgeAddCmd() *cobra.Command {
	var title, text string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a single hand-written knowledge chunk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("--text must not be empty")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post(cmd.Context(), "/knowledge", map[string]string{"title": title, "text": text})
			if err != nil {
				return fmt.Errorf("failed to add chunk: %w", err)
			}
			var c Chunk
			if err := decodeData(resp, &c, "chunk"); err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added chunk %s\n", c.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Chunk title")
	cmd.Flags().StringVar(&text, "text", "", "Chunk text")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func knowledgeDocumentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "document <document_id>",
		Short: "Print a download link for an uploaded document's original",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get(cmd.Context(), "/knowledge/documents/"+url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("failed to get document link: %w", err)
			}
			var out struct {
				URL string `json:"url"`
			}
			if err := decodeData(resp, &out, "document link"); err != nil {
				return err
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.URL)
			return nil
		},
	}
}

func knowledgeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <chunk_id>",
		Short: "Delete a knowledge chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Delete(cmd.Context(), "/knowledge/"+url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("failed to delete chunk: %w", err)
			}
			if wantJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), resp.Data)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted chunk %s\n", args[0])
			return nil
		},
	}
}
