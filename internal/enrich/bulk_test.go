package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/pkg/perplexity"
)

func TestBulkRunner_OnlyTargetsEnrichableContacts(t *testing.T) {
	st := newTestStore(t)

	// Has an email already: skipped.
	seedContact(t, st, model.Contact{Name: "Done", Email: "done@x.de", Website: "https://done.example"})
	// No website: skipped.
	seedContact(t, st, model.Contact{Name: "No Site"})
	// The one target.
	target := seedContact(t, st, model.Contact{Name: "Target", Website: "https://target.example"})

	pplx := &fakePplx{text: "research findings"}
	e := NewEnricher(st, pplx, routedAI{}, Config{})
	report, err := NewBulkRunner(st, e).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "Target", report.Results[0].Name)
	assert.Equal(t, "max@musterfirma.de", report.Results[0].Email)
	assert.Equal(t, "website", report.Results[0].Method)
	assert.Equal(t, "complete", report.Results[0].Status)
	assert.Equal(t, 1, report.EmailsFound)
	assert.Equal(t, 1, report.PhonesFound)
	assert.InDelta(t, 100.0, report.EmailRate, 0.01)

	got, err := st.GetContact(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "max@musterfirma.de", got.Email)
}

func TestBulkRunner_EmptySelection(t *testing.T) {
	st := newTestStore(t)

	report, err := NewBulkRunner(st, NewEnricher(st, &fakePplx{}, &fakeAI{}, Config{})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Empty(t, report.Results)
	assert.Zero(t, report.EmailRate)
}

func TestBulkRunner_FailedEnrichmentBecomesRow(t *testing.T) {
	st := newTestStore(t)
	seedContact(t, st, model.Contact{Name: "Unlucky", Website: "https://u.example"})
	seedContact(t, st, model.Contact{Name: "Lucky", Website: "https://l.example"})

	// Research fails for everyone; enrichment degrades to failed rows
	// rather than aborting the loop.
	pplx := &fakePplx{err: assert.AnError}
	ai := &fakeAI{responses: []string{draftJSON, draftJSON}}
	report, err := NewBulkRunner(st, NewEnricher(st, pplx, ai, Config{})).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	require.Len(t, report.Results, 2)
	for _, row := range report.Results {
		assert.Equal(t, "failed", row.Status)
		assert.Empty(t, row.Email)
	}
	assert.Equal(t, 0, report.EmailsFound)
	assert.Zero(t, report.EmailRate)
}

// flakyPplx succeeds on the first call only.
type flakyPplx struct {
	inner fakePplx
}

func (f *flakyPplx) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	resp, err := f.inner.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	if f.inner.calls > 1 {
		return nil, assert.AnError
	}
	return resp, nil
}

func TestBulkRunner_MixedOutcomesRate(t *testing.T) {
	st := newTestStore(t)
	seedContact(t, st, model.Contact{Name: "First", Website: "https://1.example"})
	seedContact(t, st, model.Contact{Name: "Second", Website: "https://2.example"})
	seedContact(t, st, model.Contact{Name: "Third", Website: "https://3.example"})

	pplx := &flakyPplx{inner: fakePplx{text: "research findings"}}
	report, err := NewBulkRunner(st, NewEnricher(st, pplx, routedAI{}, Config{})).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.EmailsFound)
	assert.InDelta(t, 33.33, report.EmailRate, 0.01)
}
