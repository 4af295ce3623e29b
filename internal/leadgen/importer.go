package leadgen

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

// ProfileEvent is one streamed line per discovered candidate.
type ProfileEvent struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Company     string `json:"company,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	Website     string `json:"website,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Imported    bool   `json:"imported"`
	Duplicate   bool   `json:"duplicate"`
	Error       string `json:"error,omitempty"`
}

// SummaryEvent is the single terminal line of a discovery stream.
type SummaryEvent struct {
	Type           string `json:"type"`
	Total          int    `json:"total"`
	ImportedCount  int    `json:"imported_count"`
	DuplicateCount int    `json:"duplicate_count"`
	ErrorCount     int    `json:"error_count"`
}

// Importer consumes the discovery sequence, classifies each candidate
// against the existing contact base, inserts the new ones and emits
// one event per candidate plus a terminal summary.
type Importer struct {
	store store.Store
	gen   *Generator
	spawn func(model.Contact)
	fold  cases.Caser
}

// NewImporter builds an Importer. spawn receives each newly inserted
// contact and must not block; pass nil to disable background
// enrichment handoff.
func NewImporter(st store.Store, gen *Generator, spawn func(model.Contact)) *Importer {
	return &Importer{store: st, gen: gen, spawn: spawn, fold: cases.Fold()}
}

// Run performs one discovery-and-import run, calling emit for every
// stream event in order. The dedup snapshot is loaded once up front
// and only extended in memory with this run's own inserts; concurrent
// writers are not re-read mid-run. emit errors (client gone) abort
// the run.
func (im *Importer) Run(ctx context.Context, segment string, limit int, emit func(any) error) error {
	events, err := im.gen.Discover(ctx, segment, limit)
	if err != nil {
		return err
	}

	keys, err := im.store.DedupKeys(ctx)
	if err != nil {
		return err
	}

	urlSet := make(map[string]struct{}, len(keys))
	nameSet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if u := im.urlKey(k.LinkedInURL); u != "" {
			urlSet[u] = struct{}{}
		}
		nameSet[im.nameKey(k.Name, k.Company)] = struct{}{}
	}

	log := zap.L().With(zap.String("segment", segment))

	var imported, duplicates, failures int
	for ev := range events {
		switch ev.Kind {
		case EventError:
			// Logged and swallowed: a bad provider call reduces the
			// yield, it does not end the stream.
			log.Warn("leadgen: discovery provider error", zap.String("error", ev.Err))

		case EventBatchDone:
			log.Debug("leadgen: variation done", zap.Int("running_total", ev.Total))

		case EventCandidate:
			cand := ev.Candidate
			out := ProfileEvent{
				Type:        "profile",
				Name:        cand.Name,
				Company:     cand.Company,
				LinkedInURL: cand.LinkedInURL,
				Website:     cand.Website,
				Email:       cand.Email,
				Phone:       cand.Phone,
			}

			urlKey := im.urlKey(cand.LinkedInURL)
			_, urlDup := urlSet[urlKey]
			_, nameDup := nameSet[im.nameKey(cand.Name, cand.Company)]

			switch {
			case (urlKey != "" && urlDup) || nameDup:
				duplicates++
				out.Duplicate = true

			default:
				created, err := im.store.CreateContact(ctx, model.Contact{
					Name:        cand.Name,
					Company:     cand.Company,
					Email:       cand.Email,
					Phone:       cand.Phone,
					Website:     cand.Website,
					LinkedInURL: cand.LinkedInURL,
					Headline:    cand.Headline,
					Segment:     segment,
					Stage:       model.StageNew,
					Source:      "lead_search",
				})
				if err != nil {
					failures++
					out.Error = err.Error()
					log.Error("leadgen: contact insert failed", zap.String("name", cand.Name), zap.Error(err))
				} else {
					imported++
					out.Imported = true
					// Later candidates in this run dedup against the
					// rows we just wrote.
					if urlKey != "" {
						urlSet[urlKey] = struct{}{}
					}
					nameSet[im.nameKey(cand.Name, cand.Company)] = struct{}{}
					if im.spawn != nil {
						im.spawn(*created)
					}
				}
			}

			if err := emit(out); err != nil {
				return err
			}
		}
	}

	return emit(SummaryEvent{
		Type:           "summary",
		Total:          imported + duplicates + failures,
		ImportedCount:  imported,
		DuplicateCount: duplicates,
		ErrorCount:     failures,
	})
}

func (im *Importer) urlKey(url string) string {
	return im.fold.String(strings.TrimSpace(url))
}

func (im *Importer) nameKey(name, company string) string {
	return im.fold.String(strings.TrimSpace(name)) + "|" + im.fold.String(strings.TrimSpace(company))
}
