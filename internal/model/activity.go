package model

import "time"

// ActivityKind classifies an activity record.
type ActivityKind string

const (
	ActivityEnrichment ActivityKind = "enrichment"
	ActivityEmailDraft ActivityKind = "email_draft"
	ActivityEmailSent  ActivityKind = "email_sent"
	ActivityNote       ActivityKind = "note"
)

// Activity is an audit-trail entry attached to a contact. The latest
// activity of a kind doubles as the idempotency marker for pipeline
// steps: enrichment is skipped when an "enrichment" activity already
// exists for the contact.
type Activity struct {
	ID        string         `json:"id"`
	ContactID string         `json:"contact_id"`
	Kind      ActivityKind   `json:"kind"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedBy string         `json:"created_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
