package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloo-solutions/ticketassist/internal/domain"
)

// historyWindow is how many recent messages accompany a draft request.
const historyWindow = 5

const suggestSystemPrompt = `You draft replies for customer-support agents.
Answer ONLY from the numbered knowledge excerpts provided. If they do not cover the question, say that the knowledge base does not cover it and do not guess.
Respond with exactly one JSON object and nothing else:
{"answer": string, "steps": [string], "citations": [chunk_id]}
"answer" is a short customer-facing reply (one to three sentences).
"steps" lists up to four next actions for the agent.
"citations" lists the exact bracketed ids of the excerpts you used.`

const summarizeSystemPrompt = `You are a strict factual summarizer for support tickets.
Summarize only what is explicitly stated. Do not invent agent replies and do not assume the customer is satisfied unless they say so.
If there is no conversation beyond the opening message, state what the customer asked.`

func buildSuggestPrompt(t *domain.Ticket, evidence []domain.ScoredChunk) string {
	var b strings.Builder

	b.WriteString("Knowledge excerpts:\n")
	for i, e := range evidence {
		text := strings.Join(strings.Fields(e.Text), " ")
		fmt.Fprintf(&b, "%d. [%s] (%s) %s\n", i+1, e.ChunkID, e.Title, text)
	}

	if recent := t.RecentMessages(historyWindow); len(recent) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, m := range recent {
			fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
		}
	}

	fmt.Fprintf(&b, "\nTicket: %q\n", t.Text)
	if latest := t.LatestCustomerMessage(); latest != t.Text {
		fmt.Fprintf(&b, "Latest customer message: %q\n", latest)
	}
	return b.String()
}

func buildSummarizePrompt(t *domain.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket: %s\n\nConversation:\n", t.Text)
	for _, m := range t.Messages {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(m.Role)), m.Content)
	}
	b.WriteString("\nSummary:")
	return b.String()
}

func translateSystemPrompt(targetLang string) string {
	return fmt.Sprintf("Translate the user's text to %s. Return only the translated text, nothing else.", targetLang)
}

type draftResponse struct {
	Answer    string   `json:"answer"`
	Steps     []string `json:"steps"`
	Citations []string `json:"citations"`
}

// parseDraft extracts the JSON object from a model reply. Models sometimes
// wrap it in prose or code fences, so the outermost braces are used. A reply
// without parsable JSON becomes the answer verbatim.
func parseDraft(raw string) draftResponse {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		var d draftResponse
		if err := json.Unmarshal([]byte(raw[start:end+1]), &d); err == nil && strings.TrimSpace(d.Answer) != "" {
			return d
		}
	}
	return draftResponse{Answer: raw}
}

// keepKnownCitations drops ids that are not in the evidence, preserving order
// and removing duplicates.
func keepKnownCitations(ids []string, evidence []domain.ScoredChunk) []string {
	known := make(map[string]bool, len(evidence))
	for _, e := range evidence {
		known[e.ChunkID] = true
	}
	out := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		id = strings.Trim(strings.TrimSpace(id), "[]")
		if known[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
