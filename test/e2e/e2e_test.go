//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/cli/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refundGuide = `# Refund policy

Refunds are issued to the original payment method within five business days.
To request a refund open the billing page, choose the invoice and press "Request refund".

# Password reset

If a customer cannot log in, send a reset link from the account page. Reset links expire after one hour.`

func uploadGuide(t *testing.T, env *E2ETestEnv) client.UploadResult {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guide.md")
	require.NoError(t, os.WriteFile(path, []byte(refundGuide), 0o600))

	resp, err := env.API.UploadDocument(env.Ctx, path, "", nil)
	require.NoError(t, err)

	var result client.UploadResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	require.Equal(t, "success", result.Status, result.Error)
	return result
}

func createTicket(t *testing.T, env *E2ETestEnv, customerID, text string) client.Ticket {
	t.Helper()
	resp, err := env.API.Post(env.Ctx, "/tickets", map[string]string{"customer_id": customerID, "text": text})
	require.NoError(t, err)

	var ticket client.Ticket
	require.NoError(t, json.Unmarshal(resp.Data, &ticket))
	return ticket
}

// TestE2E_SupportFlow covers ingestion, ticket lifecycle, suggestions and
// feedback against PostgreSQL, Redis and object storage.
func TestE2E_SupportFlow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	upload := uploadGuide(t, env)
	assert.Greater(t, upload.ChunksAdded, 0)

	t.Run("original document is archived", func(t *testing.T) {
		require.NotEmpty(t, upload.DocumentID)
		resp, err := env.API.Get(env.Ctx, "/knowledge?limit=100")
		require.NoError(t, err)

		var page client.ChunkPage
		require.NoError(t, json.Unmarshal(resp.Data, &page))
		require.Len(t, page.Items, upload.ChunksAdded)
		for _, c := range page.Items {
			assert.Equal(t, upload.DocumentID, c.DocumentID)
			assert.Equal(t, "hash-v1", c.EmbeddingModel)
		}

		resp, err = env.API.Get(env.Ctx, "/knowledge/documents/"+upload.DocumentID)
		require.NoError(t, err)
		var link struct {
			URL string `json:"url"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &link))
		assert.Contains(t, link.URL, "documents/"+upload.DocumentID+"/")

		_, err = env.API.Get(env.Ctx, "/knowledge/documents/no-such-document")
		require.Error(t, err)
	})

	ticket := createTicket(t, env, "cust-1", "How long does a refund take to reach my card?")
	assert.Equal(t, "open", ticket.Status)
	assert.Contains(t, ticket.Tags, "billing")

	var suggestion client.Suggestion
	t.Run("suggest cites the refund policy", func(t *testing.T) {
		resp, err := env.API.Post(env.Ctx, "/tickets/"+ticket.ID+"/suggest", nil)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(resp.Data, &suggestion))

		require.NotEmpty(t, suggestion.Evidence)
		assert.Contains(t, strings.ToLower(suggestion.Evidence[0].Text), "refund")
		assert.Greater(t, suggestion.Confidence, 0.0)
		assert.LessOrEqual(t, suggestion.Confidence, 1.0)
	})

	t.Run("reply resolve and reject further replies", func(t *testing.T) {
		_, err := env.API.Post(env.Ctx, "/tickets/"+ticket.ID+"/reply", map[string]string{"role": "agent", "content": suggestion.Answer})
		require.NoError(t, err)

		_, err = env.API.Post(env.Ctx, "/tickets/"+ticket.ID+"/resolve", nil)
		require.NoError(t, err)

		_, err = env.API.Post(env.Ctx, "/tickets/"+ticket.ID+"/reply", map[string]string{"role": "customer", "content": "thanks"})
		var apiErr *client.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
		assert.Equal(t, "TICKET_CLOSED", apiErr.Code)
	})

	t.Run("feedback feeds the gap report", func(t *testing.T) {
		_, err := env.API.Post(env.Ctx, "/feedback", map[string]interface{}{
			"ticket_text":    ticket.Text,
			"accepted":       true,
			"used_citations": suggestion.Citations,
		})
		require.NoError(t, err)

		_, err = env.API.Post(env.Ctx, "/feedback", map[string]interface{}{
			"ticket_text": "Can I export my data to CSV?",
			"accepted":    false,
			"comment":     "no export docs",
		})
		require.NoError(t, err)

		resp, err := env.API.Get(env.Ctx, "/analytics/gaps")
		require.NoError(t, err)
		var report client.GapReport
		require.NoError(t, json.Unmarshal(resp.Data, &report))
		assert.Equal(t, 2, report.Total)
		assert.Equal(t, 1, report.Rejected)
		assert.InDelta(t, 0.5, report.GapRate, 1e-9)
		require.Len(t, report.Gaps, 1)
		assert.Equal(t, "Can I export my data to CSV?", report.Gaps[0].Query)
	})

	t.Run("resolved ticket can be deleted", func(t *testing.T) {
		_, err := env.API.Delete(env.Ctx, "/tickets/"+ticket.ID)
		require.NoError(t, err)

		_, err = env.API.Get(env.Ctx, "/tickets/"+ticket.ID)
		var apiErr *client.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	})
}

func TestE2E_IdempotentCreate(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	body := map[string]string{"customer_id": "cust-2", "text": "App crashes on login"}
	opts := client.RequestOptions{IdempotencyKey: "retry-123"}

	first, err := env.API.PostWithOptions(env.Ctx, "/tickets", body, opts)
	require.NoError(t, err)
	second, err := env.API.PostWithOptions(env.Ctx, "/tickets", body, opts)
	require.NoError(t, err)

	var a, b client.Ticket
	require.NoError(t, json.Unmarshal(first.Data, &a))
	require.NoError(t, json.Unmarshal(second.Data, &b))
	assert.Equal(t, a.ID, b.ID)

	resp, err := env.API.Get(env.Ctx, "/tickets?customer_id=cust-2")
	require.NoError(t, err)
	var list []client.TicketSummary
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Len(t, list, 1)
}

// TestE2E_EventStream follows a ticket over SSE while it changes; events
// travel through Redis.
func TestE2E_EventStream(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	ticket := createTicket(t, env, "cust-3", "Please reset my password")

	ctx, cancel := context.WithTimeout(env.Ctx, 30*time.Second)
	defer cancel()

	received := make(chan client.StreamEvent, 16)
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- env.API.StreamTicketEvents(ctx, ticket.ID, func(ev client.StreamEvent) error {
			received <- ev
			return nil
		})
	}()

	next := func() client.StreamEvent {
		select {
		case ev := <-received:
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return client.StreamEvent{}
		}
	}

	assert.Equal(t, "snapshot", next().Name)

	_, err := env.API.Post(env.Ctx, "/tickets/"+ticket.ID+"/reply", map[string]string{"role": "agent", "content": "Reset link sent"})
	require.NoError(t, err)
	assert.Equal(t, "message", next().Name)

	_, err = env.API.Post(env.Ctx, "/tickets/"+ticket.ID+"/resolve", nil)
	require.NoError(t, err)
	assert.Equal(t, "resolved", next().Name)

	_, err = env.API.Delete(env.Ctx, "/tickets/"+ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "deleted", next().Name)

	select {
	case err := <-streamErr:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("stream did not end after delete")
	}
}

func TestE2E_CLI(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildCLI()

	guide := filepath.Join(env.BinaryDir, "guide.md")
	require.NoError(t, os.WriteFile(guide, []byte(refundGuide), 0o600))

	out, err := env.RunCLI("knowledge", "upload", guide)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Ingested")

	out, err = env.RunCLI("--output", "tickets", "create", "--customer", "cust-4", "--text", "Where is my refund?")
	require.NoError(t, err, out)
	var ticket client.Ticket
	require.NoError(t, json.Unmarshal([]byte(out), &ticket))

	out, err = env.RunCLI("tickets", "suggest", ticket.ID)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Confidence:")

	out, err = env.RunCLI("tickets", "delete", ticket.ID)
	require.Error(t, err)
	assert.Contains(t, out, "TICKET_NOT_RESOLVED")

	out, err = env.RunCLI("tickets", "summarize", ticket.ID)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Where is my refund?")
}
