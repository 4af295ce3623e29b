package leadgen

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

// fakeStore is an in-memory Store covering the slice the Importer
// touches; the remaining methods are unused here.
type fakeStore struct {
	store.Store

	contacts  []model.Contact
	keys      []store.DedupKey
	failNames map[string]bool
}

func (f *fakeStore) DedupKeys(context.Context) ([]store.DedupKey, error) {
	return f.keys, nil
}

func (f *fakeStore) CreateContact(_ context.Context, c model.Contact) (*model.Contact, error) {
	if f.failNames[c.Name] {
		return nil, errors.New("insert failed")
	}
	c.ID = fmt.Sprintf("c-%d", len(f.contacts)+1)
	f.contacts = append(f.contacts, c)
	return &c, nil
}

func newImporterHarness(st *fakeStore, results []searchResult, queries ...string) (*Importer, *[]model.Contact) {
	var spawned []model.Contact
	gen := NewGenerator(&fakeSearcher{results: results}, testCatalog(queries...), 0)
	im := NewImporter(st, gen, func(c model.Contact) { spawned = append(spawned, c) })
	return im, &spawned
}

func collect(t *testing.T, im *Importer, segment string, limit int) ([]ProfileEvent, SummaryEvent) {
	t.Helper()
	var profiles []ProfileEvent
	var summary SummaryEvent
	err := im.Run(context.Background(), segment, limit, func(ev any) error {
		switch v := ev.(type) {
		case ProfileEvent:
			profiles = append(profiles, v)
		case SummaryEvent:
			summary = v
		default:
			t.Fatalf("unexpected event type %T", ev)
		}
		return nil
	})
	require.NoError(t, err)
	return profiles, summary
}

func TestImporter_ImportsNewCandidates(t *testing.T) {
	st := &fakeStore{}
	im, spawned := newImporterHarness(st, []searchResult{
		{cands: []model.Candidate{
			{Name: "Max Mustermann", Company: "Musterfirma", LinkedInURL: "https://linkedin.com/in/max"},
			{Name: "Anna Schmidt", Company: "ACME"},
		}},
	}, "q1")

	profiles, summary := collect(t, im, "test", 10)

	require.Len(t, profiles, 2)
	assert.True(t, profiles[0].Imported)
	assert.False(t, profiles[0].Duplicate)
	assert.Equal(t, "profile", profiles[0].Type)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.ImportedCount)
	assert.Equal(t, 0, summary.DuplicateCount)
	assert.Equal(t, 0, summary.ErrorCount)

	require.Len(t, st.contacts, 2)
	assert.Equal(t, "test", st.contacts[0].Segment)
	assert.Equal(t, "lead_search", st.contacts[0].Source)
	assert.Equal(t, model.StageNew, st.contacts[0].Stage)

	assert.Len(t, *spawned, 2)
}

func TestImporter_DuplicateByLinkedInURLIgnoresCase(t *testing.T) {
	st := &fakeStore{keys: []store.DedupKey{
		{LinkedInURL: "https://linkedin.com/in/MAX", Name: "Someone Else", Company: ""},
	}}
	im, spawned := newImporterHarness(st, []searchResult{
		{cands: []model.Candidate{
			{Name: "Max Mustermann", LinkedInURL: "https://linkedin.com/in/max"},
		}},
	}, "q1")

	profiles, summary := collect(t, im, "test", 10)

	require.Len(t, profiles, 1)
	assert.True(t, profiles[0].Duplicate)
	assert.False(t, profiles[0].Imported)
	assert.Equal(t, 1, summary.DuplicateCount)
	assert.Empty(t, st.contacts)
	assert.Empty(t, *spawned)
}

func TestImporter_DuplicateByNameAndCompany(t *testing.T) {
	st := &fakeStore{keys: []store.DedupKey{
		{Name: "anna schmidt", Company: "ACME"},
	}}
	im, _ := newImporterHarness(st, []searchResult{
		{cands: []model.Candidate{
			{Name: "Anna Schmidt", Company: "acme"},
			{Name: "Anna Schmidt", Company: "Other GmbH"},
		}},
	}, "q1")

	profiles, summary := collect(t, im, "test", 10)

	require.Len(t, profiles, 2)
	assert.True(t, profiles[0].Duplicate)
	// Same name at a different company is a different person.
	assert.True(t, profiles[1].Imported)
	assert.Equal(t, 1, summary.DuplicateCount)
	assert.Equal(t, 1, summary.ImportedCount)
}

func TestImporter_InRunInsertExtendsDedupSets(t *testing.T) {
	st := &fakeStore{}
	// Same URL under two different names slips past the generator's
	// name dedup; the importer must catch the second one.
	im, _ := newImporterHarness(st, []searchResult{
		{cands: []model.Candidate{
			{Name: "Max Mustermann", LinkedInURL: "https://linkedin.com/in/max"},
			{Name: "M. Mustermann", LinkedInURL: "https://linkedin.com/in/max"},
		}},
	}, "q1")

	profiles, summary := collect(t, im, "test", 10)

	require.Len(t, profiles, 2)
	assert.True(t, profiles[0].Imported)
	assert.True(t, profiles[1].Duplicate)
	assert.Equal(t, 1, summary.ImportedCount)
	assert.Equal(t, 1, summary.DuplicateCount)
	require.Len(t, st.contacts, 1)
}

func TestImporter_InsertFailureIsIsolated(t *testing.T) {
	st := &fakeStore{failNames: map[string]bool{"Broken Row": true}}
	im, spawned := newImporterHarness(st, []searchResult{
		{cands: []model.Candidate{
			{Name: "Broken Row"},
			{Name: "Anna Schmidt"},
		}},
	}, "q1")

	profiles, summary := collect(t, im, "test", 10)

	require.Len(t, profiles, 2)
	assert.False(t, profiles[0].Imported)
	assert.False(t, profiles[0].Duplicate)
	assert.Contains(t, profiles[0].Error, "insert failed")
	assert.True(t, profiles[1].Imported)

	assert.Equal(t, 1, summary.ErrorCount)
	assert.Equal(t, 1, summary.ImportedCount)
	assert.Equal(t, summary.Total, summary.ImportedCount+summary.DuplicateCount+summary.ErrorCount)
	assert.Len(t, *spawned, 1)
}

func TestImporter_ProviderErrorStillEndsWithSummary(t *testing.T) {
	st := &fakeStore{}
	im, _ := newImporterHarness(st, []searchResult{
		{err: errors.New("upstream 500")},
	}, "q1")

	profiles, summary := collect(t, im, "test", 10)

	assert.Empty(t, profiles)
	assert.Equal(t, "summary", summary.Type)
	assert.Equal(t, 0, summary.Total)
}

func TestImporter_UnknownSegmentFailsBeforeAnyEmit(t *testing.T) {
	st := &fakeStore{}
	im, _ := newImporterHarness(st, nil, "q1")

	emitted := false
	err := im.Run(context.Background(), "nope", 10, func(any) error {
		emitted = true
		return nil
	})
	assert.ErrorIs(t, err, ErrUnknownSegment)
	assert.False(t, emitted)
}

func TestImporter_EmitErrorAbortsRun(t *testing.T) {
	st := &fakeStore{}
	im, _ := newImporterHarness(st, []searchResult{
		{cands: []model.Candidate{{Name: "A"}, {Name: "B"}}},
	}, "q1")

	clientGone := errors.New("client gone")
	err := im.Run(context.Background(), "test", 10, func(any) error {
		return clientGone
	})
	assert.ErrorIs(t, err, clientGone)
	// The first candidate was inserted before the write failed.
	assert.Len(t, st.contacts, 1)
}
