package model

// Candidate is an unverified contact discovered by the search
// provider. It lives only for the duration of one discovery run:
// parsed from the provider response, classified by the dedup gate,
// then either inserted as a Contact or dropped.
type Candidate struct {
	Name        string `json:"name"`
	Company     string `json:"company,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	Website     string `json:"website,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Headline    string `json:"headline,omitempty"`
}
