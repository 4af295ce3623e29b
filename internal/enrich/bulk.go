package enrich

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/store"
)

// BulkRow is one contact's outcome in a bulk run.
type BulkRow struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Method string `json:"method"`
	Status string `json:"status"`
}

// BulkReport aggregates one bulk run.
type BulkReport struct {
	Total       int       `json:"total"`
	EmailsFound int       `json:"emails_found"`
	PhonesFound int       `json:"phones_found"`
	EmailRate   float64   `json:"email_rate"`
	Results     []BulkRow `json:"results"`
}

// BulkRunner enriches every contact that is missing an email but has a
// website, strictly one at a time. A contact's failure becomes a row,
// not an abort.
type BulkRunner struct {
	store    store.Store
	enricher *Enricher
}

func NewBulkRunner(st store.Store, enricher *Enricher) *BulkRunner {
	return &BulkRunner{store: st, enricher: enricher}
}

func (r *BulkRunner) Run(ctx context.Context) (*BulkReport, error) {
	contacts, err := r.store.ListContacts(ctx, store.ContactFilter{
		MissingEmail: true,
		HasWebsite:   true,
	})
	if err != nil {
		return nil, err
	}

	log := zap.L()
	report := &BulkReport{Total: len(contacts), Results: make([]BulkRow, 0, len(contacts))}

	for _, contact := range contacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome, err := r.enricher.Enrich(ctx, contact.ID)
		if err != nil {
			log.Error("enrich: bulk item failed", zap.String("contact", contact.DisplayName()), zap.Error(err))
			report.Results = append(report.Results, BulkRow{
				Name:   contact.Name,
				Method: "error",
				Status: err.Error(),
			})
			continue
		}

		res := outcome.Enrichment
		row := BulkRow{
			Name:   contact.Name,
			Email:  res.Email,
			Phone:  res.Phone,
			Method: string(res.EmailSource()),
			Status: string(res.Status),
		}
		report.Results = append(report.Results, row)

		if res.Email != "" {
			report.EmailsFound++
		}
		if res.Phone != "" {
			report.PhonesFound++
		}
	}

	if report.Total > 0 {
		report.EmailRate = math.Round(float64(report.EmailsFound)/float64(report.Total)*10000) / 100
	}
	log.Info("enrich: bulk run finished",
		zap.Int("total", report.Total),
		zap.Int("emails_found", report.EmailsFound),
		zap.Float64("email_rate", report.EmailRate),
	)
	return report, nil
}
