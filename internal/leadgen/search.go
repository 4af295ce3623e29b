package leadgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/pkg/perplexity"
)

// Searcher turns one prompt into a list of candidate contacts.
type Searcher interface {
	Search(ctx context.Context, prompt string) ([]model.Candidate, error)
}

const searchSystemPrompt = `You are a lead research assistant. Respond with a raw JSON array only:
no prose, no markdown, no code fences. Each array element is an object with the keys
"name" (required), "company", "linkedin_url", "website", "email", "phone" and
"headline". Use null for anything you cannot find. Only include real, individually
identifiable business people.`

type perplexitySearcher struct {
	client perplexity.Client
}

// NewSearcher builds a Searcher on top of the Perplexity client.
func NewSearcher(client perplexity.Client) Searcher {
	return &perplexitySearcher{client: client}
}

func (s *perplexitySearcher) Search(ctx context.Context, prompt string) ([]model.Candidate, error) {
	temp := 0.2
	resp, err := s.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: searchSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("leadgen: empty search response")
	}
	return ParseCandidates(resp.Choices[0].Message.Content), nil
}

// buildPrompt composes one variation's search prompt, listing every
// already-seen name verbatim so the provider does not repeat them.
func buildPrompt(query string, n int, exclude []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Find %d people matching: %s.", n, query)
	sb.WriteString(" Include name, company, LinkedIn profile URL, website, email, phone and a one-line headline where available.")
	if len(exclude) > 0 {
		sb.WriteString(" Exclude the following people, they are already known: ")
		sb.WriteString(strings.Join(exclude, ", "))
		sb.WriteString(".")
	}
	return sb.String()
}
