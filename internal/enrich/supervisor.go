package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/leadflow/internal/model"
)

// defaultMaxConcurrent bounds the background fan-out. At typical run
// caps the bound is never reached.
const defaultMaxConcurrent = 8

// Supervisor fans out background enrichment per accepted contact
// without blocking the caller. Failures and panics end in the log,
// never in a response; nothing is retried.
type Supervisor struct {
	enricher *Enricher
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
}

// NewSupervisor builds a Supervisor. maxConcurrent <= 0 selects the
// default bound.
func NewSupervisor(enricher *Enricher, maxConcurrent int64) *Supervisor {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Supervisor{
		enricher: enricher,
		sem:      semaphore.NewWeighted(maxConcurrent),
	}
}

// Spawn starts enrichment for one contact and returns immediately.
// The unit runs detached from the caller's request context so a client
// disconnect does not abort in-flight provider calls.
func (s *Supervisor) Spawn(contact model.Contact) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		log := zap.L().With(zap.String("contact", contact.DisplayName()))
		defer func() {
			if r := recover(); r != nil {
				log.Error("enrich: background unit panicked", zap.Any("panic", r))
			}
		}()

		ctx := context.Background()
		if err := s.sem.Acquire(ctx, 1); err != nil {
			log.Error("enrich: semaphore acquire failed", zap.Error(err))
			return
		}
		defer s.sem.Release(1)

		if _, err := s.enricher.Enrich(ctx, contact.ID); err != nil {
			log.Error("enrich: background enrichment failed", zap.Error(err))
			return
		}
		log.Info("enrich: background enrichment done")
	}()
}

// Wait blocks until every spawned unit has finished. Used on shutdown
// and in tests.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
