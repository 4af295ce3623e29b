package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
	"github.com/sells-group/leadflow/pkg/anthropic"
	"github.com/sells-group/leadflow/pkg/perplexity"
)

const (
	defaultHaikuModel  = "claude-haiku-4-5-20251001"
	defaultSonnetModel = "claude-sonnet-4-5-20250929"
	defaultCreatedBy   = "pipeline"
)

// Config tunes the Enricher's model selection and audit tagging.
type Config struct {
	HaikuModel  string
	SonnetModel string
	CreatedBy   string
}

func (c Config) withDefaults() Config {
	if c.HaikuModel == "" {
		c.HaikuModel = defaultHaikuModel
	}
	if c.SonnetModel == "" {
		c.SonnetModel = defaultSonnetModel
	}
	if c.CreatedBy == "" {
		c.CreatedBy = defaultCreatedBy
	}
	return c
}

// Enricher runs the per-contact enrichment state machine: reuse or
// compute an enrichment, fill empty contact fields, then generate an
// outreach draft. Every step is persisted as an activity record.
type Enricher struct {
	store store.Store
	pplx  perplexity.Client
	ai    anthropic.Client
	cfg   Config
}

func NewEnricher(st store.Store, pplx perplexity.Client, ai anthropic.Client, cfg Config) *Enricher {
	return &Enricher{store: st, pplx: pplx, ai: ai, cfg: cfg.withDefaults()}
}

const researchPrompt = `Research the business contact "%s"%s.
Known details:
%s
Find their business email address, phone number, company website, a short
company description and the company's main business processes or service
offerings. Return the raw findings as text with sources.`

const extractPrompt = `Extract structured contact enrichment data from the research below.
Return a valid JSON object with these fields:
- email: string (best business email, or "")
- phone: string (best phone number, or "")
- website: string (company website URL, or "")
- company_description: string (2-3 sentences)
- business_processes: string (comma-separated services/processes)
- emails: array of {"value": string, "source": "website"|"ai"} for every email found
- phones: array of {"value": string, "source": "website"|"ai"} for every phone found

Tag a value "website" when the research shows it on the company's own site,
"ai" otherwise. Use empty strings and empty arrays when nothing was found.

Research:
%s`

const draftPrompt = `Write a short, personalized B2B cold outreach email in German to the
person below. Professional, warm, no hard sell, at most 150 words in the body.
Return a valid JSON object: {"subject": string, "body": string,
"hooks": [string]} where hooks lists the personalization facts you used.

Recipient:
%s

What we know about their company:
%s`

// Enrich runs the full state machine for one contact. It returns an
// error only when the contact cannot be resolved or the store cannot
// persist the audit trail; provider failures degrade to a failed
// enrichment result and a logged, missing draft.
func (e *Enricher) Enrich(ctx context.Context, contactID string) (*model.EnrichmentOutcome, error) {
	contact, err := e.store.GetContact(ctx, contactID)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("contact", contact.DisplayName()))

	result, err := e.enrichment(ctx, contact, log)
	if err != nil {
		return nil, err
	}

	outcome := &model.EnrichmentOutcome{Enrichment: *result}

	// The draft is regenerated on every invocation; only the enrichment
	// itself is reused across runs.
	draft, err := e.draft(ctx, contact, result)
	if err != nil {
		log.Warn("enrich: email draft failed", zap.Error(err))
	} else {
		outcome.Email = draft
	}
	return outcome, nil
}

// DraftEmail generates and persists an outreach draft for one contact,
// reusing the latest stored enrichment as context when present. Unlike
// Enrich it reports generation failures to the caller.
func (e *Enricher) DraftEmail(ctx context.Context, contactID string) (*model.EmailDraftResult, error) {
	contact, err := e.store.GetContact(ctx, contactID)
	if err != nil {
		return nil, err
	}

	result := &model.EnrichmentResult{}
	if prev, err := e.store.LatestActivity(ctx, contact.ID, model.ActivityEnrichment); err == nil && prev != nil {
		if stored := decodeResult(prev.Metadata); stored != nil {
			result = stored
		}
	}
	return e.draft(ctx, contact, result)
}

// enrichment returns the stored enrichment when one exists, otherwise
// computes a fresh one, fills empty contact fields and writes the
// enrichment activity.
func (e *Enricher) enrichment(ctx context.Context, contact *model.Contact, log *zap.Logger) (*model.EnrichmentResult, error) {
	prev, err := e.store.LatestActivity(ctx, contact.ID, model.ActivityEnrichment)
	if err != nil {
		log.Warn("enrich: latest activity lookup failed, recomputing", zap.Error(err))
	}
	if prev != nil {
		if stored := decodeResult(prev.Metadata); stored != nil {
			log.Info("enrich: reusing stored enrichment", zap.String("status", string(stored.Status)))
			return stored, nil
		}
	}

	result := e.compute(ctx, contact, log)

	if upd := fillUpdate(contact, result); !upd.Empty() {
		if err := e.store.FillContactFields(ctx, contact.ID, upd); err != nil {
			log.Warn("enrich: contact field update failed", zap.Error(err))
		}
	}

	_, err = e.store.CreateActivity(ctx, model.Activity{
		ContactID: contact.ID,
		Kind:      model.ActivityEnrichment,
		Subject:   fmt.Sprintf("Lead enriched (%s)", result.Status),
		Body:      result.CompanyDescription,
		Metadata:  toMetadata(result),
		CreatedBy: e.cfg.CreatedBy,
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: persist enrichment activity")
	}
	return result, nil
}

// compute performs the two provider calls. Failures never escape; they
// produce a failed-status result instead.
func (e *Enricher) compute(ctx context.Context, contact *model.Contact, log *zap.Logger) *model.EnrichmentResult {
	failed := func(err error) *model.EnrichmentResult {
		log.Warn("enrich: enrichment failed", zap.Error(err))
		return &model.EnrichmentResult{Status: model.EnrichmentFailed, Error: err.Error()}
	}

	temp := 0.2
	resp, err := e.pplx.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "user", Content: buildResearchPrompt(contact)},
		},
		Temperature: &temp,
	})
	if err != nil {
		return failed(eris.Wrap(err, "enrich: perplexity research"))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return failed(eris.New("enrich: empty research response"))
	}
	research := resp.Choices[0].Message.Content

	aiResp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.cfg.HaikuModel,
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(extractPrompt, research)},
		},
	})
	if err != nil {
		return failed(eris.Wrap(err, "enrich: extraction"))
	}
	aiResp.Usage.LogCost(e.cfg.HaikuModel, "enrichment_extract")

	var extracted model.EnrichmentResult
	if err := json.Unmarshal([]byte(cleanJSON(aiResp.Text())), &extracted); err != nil {
		return failed(eris.Wrap(err, "enrich: parse extraction json"))
	}

	return mergeResult(contact, &extracted)
}

// mergeResult resolves extracted values against the contact's existing
// fields. An existing value always wins and is recorded with its own
// provenance; extracted values fill the gaps.
func mergeResult(contact *model.Contact, extracted *model.EnrichmentResult) *model.EnrichmentResult {
	res := &model.EnrichmentResult{
		CompanyDescription: strings.TrimSpace(extracted.CompanyDescription),
		BusinessProcesses:  strings.TrimSpace(extracted.BusinessProcesses),
		Emails:             extracted.Emails,
		Phones:             extracted.Phones,
	}

	res.Email = strings.ToLower(strings.TrimSpace(extracted.Email))
	if contact.Email != "" {
		res.Email = contact.Email
		res.Emails = append([]model.FoundValue{{Value: contact.Email, Source: model.SourceExisting}}, res.Emails...)
	}
	res.Phone = strings.TrimSpace(extracted.Phone)
	if contact.Phone != "" {
		res.Phone = contact.Phone
		res.Phones = append([]model.FoundValue{{Value: contact.Phone, Source: model.SourceExisting}}, res.Phones...)
	}
	res.Website = strings.TrimSpace(extracted.Website)
	if contact.Website != "" {
		res.Website = contact.Website
	}

	if res.Email != "" && res.Phone != "" && res.Website != "" {
		res.Status = model.EnrichmentComplete
	} else {
		res.Status = model.EnrichmentPartial
	}
	return res
}

// fillUpdate builds the fill-only contact update: a field is included
// only when the contact's current value is empty and the result has one.
func fillUpdate(contact *model.Contact, res *model.EnrichmentResult) model.ContactUpdate {
	var upd model.ContactUpdate
	if contact.Email == "" && res.Email != "" {
		upd.Email = &res.Email
	}
	if contact.Phone == "" && res.Phone != "" {
		upd.Phone = &res.Phone
	}
	if contact.Website == "" && res.Website != "" {
		upd.Website = &res.Website
	}
	return upd
}

// draft generates the outreach email and persists it as an email_draft
// activity. Only identity fields and the enrichment summary feed the
// prompt; raw contact fields stay out of it.
func (e *Enricher) draft(ctx context.Context, contact *model.Contact, res *model.EnrichmentResult) (*model.EmailDraftResult, error) {
	identity := fmt.Sprintf("Name: %s\nCompany: %s\nHeadline: %s\nSegment: %s",
		contact.Name, contact.Company, contact.Headline, contact.Segment)
	summary := fmt.Sprintf("Description: %s\nBusiness processes: %s",
		res.CompanyDescription, res.BusinessProcesses)

	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.cfg.SonnetModel,
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(draftPrompt, identity, summary)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: draft generation")
	}
	resp.Usage.LogCost(e.cfg.SonnetModel, "email_draft")

	var draft model.EmailDraftResult
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &draft); err != nil {
		return nil, eris.Wrap(err, "enrich: parse draft json")
	}
	if strings.TrimSpace(draft.Subject) == "" && strings.TrimSpace(draft.Body) == "" {
		return nil, eris.New("enrich: empty draft")
	}

	_, err = e.store.CreateActivity(ctx, model.Activity{
		ContactID: contact.ID,
		Kind:      model.ActivityEmailDraft,
		Subject:   draft.Subject,
		Body:      draft.Body,
		Metadata:  toMetadata(&draft),
		CreatedBy: e.cfg.CreatedBy,
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: persist draft activity")
	}
	return &draft, nil
}

func buildResearchPrompt(c *model.Contact) string {
	var at string
	if c.Company != "" {
		at = fmt.Sprintf(" at %q", c.Company)
	}
	known := make([]string, 0, 5)
	addKnown := func(label, val string) {
		if val != "" {
			known = append(known, fmt.Sprintf("- %s: %s", label, val))
		}
	}
	addKnown("Website", c.Website)
	addKnown("Email", c.Email)
	addKnown("Phone", c.Phone)
	addKnown("LinkedIn", c.LinkedInURL)
	addKnown("Headline", c.Headline)
	if len(known) == 0 {
		known = append(known, "- none")
	}
	return fmt.Sprintf(researchPrompt, c.Name, at, strings.Join(known, "\n"))
}

// decodeResult rebuilds an EnrichmentResult from activity metadata,
// returning nil when the payload does not decode.
func decodeResult(meta map[string]any) *model.EnrichmentResult {
	if meta == nil {
		return nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	var res model.EnrichmentResult
	if err := json.Unmarshal(b, &res); err != nil || res.Status == "" {
		return nil
	}
	return &res
}

func toMetadata(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// cleanJSON strips markdown code fences and returns the first balanced
// JSON object in s. Models occasionally wrap their output in prose.
func cleanJSON(s string) string {
	var sb strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	cleaned := sb.String()

	start := strings.IndexByte(cleaned, '{')
	if start < 0 {
		return cleaned
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		ch := cleaned[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1]
			}
		}
	}
	return cleaned
}
