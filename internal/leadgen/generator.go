package leadgen

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadflow/internal/model"
)

// batchSize is the most candidates requested from the provider in a
// single call.
const batchSize = 5

// EventKind discriminates generator events.
type EventKind string

const (
	// EventCandidate carries one discovered, in-run-unique candidate.
	EventCandidate EventKind = "candidate"
	// EventError is an in-band provider failure; discovery continues
	// with the next query variation.
	EventError EventKind = "error"
	// EventBatchDone marks the end of one query variation and carries
	// the running total.
	EventBatchDone EventKind = "batch_done"
)

// Event is one element of the discovery sequence.
type Event struct {
	Kind      EventKind
	Candidate model.Candidate
	Err       string
	Total     int
}

// Generator drives the Searcher across a segment's query variations
// and produces a lazy, ordered, finite candidate sequence.
type Generator struct {
	searcher Searcher
	catalog  *Catalog
	delay    time.Duration
}

// NewGenerator creates a Generator. delay is the courtesy pause
// between query variations; zero disables it (tests).
func NewGenerator(searcher Searcher, catalog *Catalog, delay time.Duration) *Generator {
	return &Generator{searcher: searcher, catalog: catalog, delay: delay}
}

// Discover returns a finite event channel for one discovery run. The
// sequence is produced lazily by a single goroutine: one provider call
// at a time, variations in catalog order, candidates in provider
// order. It stops at limit candidates or when variations are
// exhausted, and drains early when ctx is cancelled. The channel is
// closed when the run ends; a run is not restartable.
func (g *Generator) Discover(ctx context.Context, segmentKey string, limit int) (<-chan Event, error) {
	seg, err := g.catalog.Get(segmentKey)
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go g.run(ctx, seg, segmentKey, limit, out)
	return out, nil
}

func (g *Generator) run(ctx context.Context, seg Segment, segmentKey string, limit int, out chan<- Event) {
	defer close(out)

	log := zap.L().With(zap.String("segment", segmentKey))

	// In-run dedup by case-insensitive name. Tracks original casing
	// for the prompt exclude list.
	seen := make(map[string]string)

	// Serial by design: one in-flight provider call keeps us under
	// external rate limits and keeps the exclude list accurate for
	// later variations.
	// rate.Every treats a zero delay as no limit.
	limiter := rate.NewLimiter(rate.Every(g.delay), 1)

	total := 0
	for _, query := range seg.Queries {
		if total >= limit {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		need := limit - total
		if need > batchSize {
			need = batchSize
		}

		cands, err := g.searcher.Search(ctx, buildPrompt(query, need, excludeList(seen)))
		if err != nil {
			log.Warn("leadgen: search variation failed", zap.String("query", query), zap.Error(err))
			if !send(ctx, out, Event{Kind: EventError, Err: err.Error()}) {
				return
			}
			continue
		}

		for _, cand := range cands {
			key := strings.ToLower(cand.Name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = cand.Name
			total++
			if !send(ctx, out, Event{Kind: EventCandidate, Candidate: cand, Total: total}) {
				return
			}
			if total >= limit {
				break
			}
		}

		if !send(ctx, out, Event{Kind: EventBatchDone, Total: total}) {
			return
		}
	}

	log.Info("leadgen: discovery finished", zap.Int("found", total), zap.Int("limit", limit))
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func excludeList(seen map[string]string) []string {
	if len(seen) == 0 {
		return nil
	}
	names := make([]string, 0, len(seen))
	for _, original := range seen {
		names = append(names, original)
	}
	sort.Strings(names)
	return names
}
