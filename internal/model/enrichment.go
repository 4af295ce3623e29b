package model

// EnrichmentStatus summarizes how much of the enrichment succeeded.
type EnrichmentStatus string

const (
	EnrichmentComplete EnrichmentStatus = "complete"
	EnrichmentPartial  EnrichmentStatus = "partial"
	EnrichmentFailed   EnrichmentStatus = "failed"
)

// ValueSource tags where a found value came from.
type ValueSource string

const (
	SourceWebsite  ValueSource = "website"
	SourceAI       ValueSource = "ai"
	SourceExisting ValueSource = "existing"
)

// FoundValue is a single candidate value with provenance.
type FoundValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
}

// EnrichmentResult is the transient outcome of enriching one contact.
// It is embedded verbatim into the metadata of an "enrichment"
// activity and never stored on its own.
type EnrichmentResult struct {
	Status             EnrichmentStatus `json:"status"`
	Email              string           `json:"email,omitempty"`
	Phone              string           `json:"phone,omitempty"`
	Website            string           `json:"website,omitempty"`
	CompanyDescription string           `json:"company_description,omitempty"`
	BusinessProcesses  string           `json:"business_processes,omitempty"`
	Emails             []FoundValue     `json:"emails,omitempty"`
	Phones             []FoundValue     `json:"phones,omitempty"`
	Error              string           `json:"error,omitempty"`
}

// EmailSource returns the provenance of the resolved email, or empty.
func (r EnrichmentResult) EmailSource() ValueSource {
	for _, fv := range r.Emails {
		if fv.Value == r.Email {
			return fv.Source
		}
	}
	return ""
}

// EmailDraftResult is a generated outreach draft, embedded into the
// metadata of an "email_draft" activity.
type EmailDraftResult struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Hooks   []string `json:"hooks,omitempty"`
}

// EnrichmentOutcome bundles what the single-lead enrichment endpoint
// returns: the enrichment plus the persisted draft, if any.
type EnrichmentOutcome struct {
	Enrichment EnrichmentResult  `json:"enrichment"`
	Email      *EmailDraftResult `json:"email,omitempty"`
}
