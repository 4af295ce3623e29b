package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

// ErrNotFound is returned when a contact or activity id does not
// resolve to a row.
var ErrNotFound = eris.New("store: not found")

// DedupKey is the slim projection of a contact used by the discovery
// dedup gate: one row per non-deleted contact.
type DedupKey struct {
	LinkedInURL string
	Name        string
	Company     string
}

// ContactFilter selects contacts for listings and bulk sweeps. Soft
// deleted contacts are always excluded.
type ContactFilter struct {
	Segment      string
	MissingEmail bool
	HasWebsite   bool
	Limit        int
}

// Store defines persistence for contacts and their activity trail.
type Store interface {
	// Contacts
	CreateContact(ctx context.Context, c model.Contact) (*model.Contact, error)
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	// FillContactFields applies fill-only updates: each field is
	// written only when the stored value is currently empty.
	FillContactFields(ctx context.Context, id string, upd model.ContactUpdate) error
	ListContacts(ctx context.Context, f ContactFilter) ([]model.Contact, error)
	DedupKeys(ctx context.Context) ([]DedupKey, error)

	// Activities
	CreateActivity(ctx context.Context, a model.Activity) (*model.Activity, error)
	UpdateActivity(ctx context.Context, id, subject, body string) error
	// LatestActivity returns the most recently created activity of
	// the given kind, or (nil, nil) when the contact has none.
	LatestActivity(ctx context.Context, contactID string, kind model.ActivityKind) (*model.Activity, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
