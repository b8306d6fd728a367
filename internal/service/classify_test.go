package service

import (
	"testing"

	"github.com/cloo-solutions/ticketassist/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		tags      []string
		sentiment domain.Sentiment
		priority  domain.Priority
	}{
		{
			name:      "General",
			text:      "Hello there",
			tags:      []string{TagGeneral},
			sentiment: domain.SentimentNeutral,
			priority:  domain.PriorityLow,
		},
		{
			name:      "BillingRefund",
			text:      "Please refund the duplicate charge on my invoice",
			tags:      []string{TagBilling},
			sentiment: domain.SentimentNeutral,
			priority:  domain.PriorityLow,
		},
		{
			name:      "NegativeTechnical",
			text:      "Login is broken and support is useless",
			tags:      []string{TagTechnical},
			sentiment: domain.SentimentNegative,
			priority:  domain.PriorityHigh,
		},
		{
			name:      "UrgentButPolite",
			text:      "Thanks! This is urgent",
			tags:      []string{TagUrgent},
			sentiment: domain.SentimentPositive,
			priority:  domain.PriorityHigh,
		},
		{
			name:      "MultipleTags",
			text:      "Great idea: add an email export to my account",
			tags:      []string{TagAccount, TagFeatureRequest},
			sentiment: domain.SentimentPositive,
			priority:  domain.PriorityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.text)
			assert.Equal(t, tt.tags, c.Tags)
			assert.Equal(t, tt.sentiment, c.Sentiment)
			assert.Equal(t, tt.priority, c.Priority)
		})
	}
}
