package domain

// Classification is the derived metadata of a ticket.
type Classification struct {
	Tags      []string
	Sentiment Sentiment
	Priority  Priority
}

// Reclassify applies sentiment and priority derived from a customer reply.
// Tags stay as assigned at creation.
func (t *Ticket) Reclassify(c Classification) {
	t.Sentiment = c.Sentiment
	t.Priority = c.Priority
}
