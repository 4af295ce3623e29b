package model

import "time"

// Stage represents a contact's position in the sales pipeline.
type Stage string

const (
	StageNew       Stage = "new"
	StageContacted Stage = "contacted"
	StageQualified Stage = "qualified"
	StageCustomer  Stage = "customer"
	StageLost      Stage = "lost"
)

// Contact represents a persisted business contact (a lead).
type Contact struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Company     string     `json:"company,omitempty"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Website     string     `json:"website,omitempty"`
	LinkedInURL string     `json:"linkedin_url,omitempty"`
	Headline    string     `json:"headline,omitempty"`
	Segment     string     `json:"segment,omitempty"`
	Stage       Stage      `json:"stage"`
	Source      string     `json:"source,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DisplayName returns the contact's name with company for log lines.
func (c Contact) DisplayName() string {
	if c.Company == "" {
		return c.Name
	}
	return c.Name + " (" + c.Company + ")"
}

// ContactUpdate holds fill-only field updates produced by enrichment.
// A nil field means "leave as is"; enrichment never overwrites a
// populated value, so the store applies each field only when the
// current column is empty.
type ContactUpdate struct {
	Email   *string
	Phone   *string
	Website *string
}

// Empty reports whether the update carries no changes.
func (u ContactUpdate) Empty() bool {
	return u.Email == nil && u.Phone == nil && u.Website == nil
}
