package service

import (
	"sort"
	"strings"

	"github.com/cloo-solutions/ticketassist/internal/domain"
)

const (
	TagBilling        = "billing"
	TagTechnical      = "technical"
	TagAccount        = "account"
	TagFeatureRequest = "feature_request"
	TagUrgent         = "urgent"
	TagGeneral        = "general"
)

var tagKeywords = map[string][]string{
	TagBilling:        {"bill", "invoice", "charge", "payment", "cost", "price", "subscription", "refund"},
	TagTechnical:      {"error", "bug", "fail", "crash", "login", "password", "access", "connect", "broken"},
	TagAccount:        {"account", "profile", "email", "username", "settings", "reset"},
	TagFeatureRequest: {"feature", "request", "add", "improve", "suggestion", "idea"},
	TagUrgent:         {"urgent", "asap", "immediately", "critical", "emergency"},
}

var (
	positiveWords = []string{"great", "awesome", "thanks", "thank", "good", "love", "helpful", "best"}
	negativeWords = []string{"bad", "terrible", "worst", "hate", "angry", "upset", "fail", "broken", "slow", "useless", "waiting"}
)

// Classify derives tags, sentiment and priority from ticket text by keyword
// matching. Keywords match as substrings of the lowercased text.
func Classify(text string) domain.Classification {
	lower := strings.ToLower(text)

	var tags []string
	for tag, words := range tagKeywords {
		if containsAny(lower, words) {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		tags = append(tags, TagGeneral)
	}
	sort.Strings(tags)

	pos, neg := countMatches(lower, positiveWords), countMatches(lower, negativeWords)
	sentiment := domain.SentimentNeutral
	switch {
	case neg > pos:
		sentiment = domain.SentimentNegative
	case pos > neg:
		sentiment = domain.SentimentPositive
	}

	priority := domain.PriorityLow
	if sentiment == domain.SentimentNegative || hasTag(tags, TagUrgent) {
		priority = domain.PriorityHigh
	}

	return domain.Classification{Tags: tags, Sentiment: sentiment, Priority: priority}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func countMatches(s string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(s, w) {
			n++
		}
	}
	return n
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
