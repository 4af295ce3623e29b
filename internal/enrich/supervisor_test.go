package enrich

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
	"github.com/sells-group/leadflow/pkg/anthropic"
)

func TestSupervisor_SpawnRunsEnrichmentInBackground(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	contact := seedContact(t, st, model.Contact{Name: "Max Mustermann"})

	pplx := &fakePplx{text: "research findings"}
	ai := &fakeAI{responses: []string{extractionJSON, draftJSON}}
	sup := NewSupervisor(NewEnricher(st, pplx, ai, Config{}), 0)

	sup.Spawn(*contact)
	sup.Wait()

	act, err := st.LatestActivity(ctx, contact.ID, model.ActivityEnrichment)
	require.NoError(t, err)
	require.NotNil(t, act)
	assert.Equal(t, "Lead enriched (complete)", act.Subject)
}

func TestSupervisor_FailureStaysInBackground(t *testing.T) {
	st := newTestStore(t)

	// Unknown contact id makes the unit fail outright; Spawn and Wait
	// must still return cleanly.
	sup := NewSupervisor(NewEnricher(st, &fakePplx{}, &fakeAI{}, Config{}), 2)
	sup.Spawn(model.Contact{ID: "no-such-id", Name: "Ghost"})
	sup.Wait()
}

// panicStore blows up on first use to exercise panic recovery.
type panicStore struct {
	store.Store
}

func (panicStore) GetContact(context.Context, string) (*model.Contact, error) {
	panic("store exploded")
}

func TestSupervisor_RecoversPanics(t *testing.T) {
	sup := NewSupervisor(NewEnricher(panicStore{}, &fakePplx{}, &fakeAI{}, Config{}), 1)
	sup.Spawn(model.Contact{ID: "c-1", Name: "Max"})
	sup.Wait()
}

// routedAI answers by prompt content so interleaved concurrent calls
// still get the right payload.
type routedAI struct{}

func (routedAI) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	text := draftJSON
	if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "Extract structured") {
		text = extractionJSON
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}, nil
}

func TestSupervisor_FanOut(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	pplx := &fakePplx{text: "research findings"}
	sup := NewSupervisor(NewEnricher(st, pplx, routedAI{}, Config{}), 2)

	var ids []string
	for i := 0; i < 5; i++ {
		c := seedContact(t, st, model.Contact{Name: "Contact", Company: string(rune('A' + i))})
		ids = append(ids, c.ID)
		sup.Spawn(*c)
	}
	sup.Wait()

	for _, id := range ids {
		act, err := st.LatestActivity(ctx, id, model.ActivityEnrichment)
		require.NoError(t, err)
		assert.NotNil(t, act)
	}
}
