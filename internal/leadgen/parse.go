package leadgen

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/model"
)

// ParseCandidates extracts candidate contacts from a raw provider
// response. The provider is told to return a bare JSON array but in
// practice wraps it in prose or code fences, so parsing is lenient:
// fences are stripped, the first balanced [...] substring is located,
// and any decode failure degrades to an empty slice. All leniency
// lives here; callers can treat the provider as a clean sequence
// source.
func ParseCandidates(raw string) []model.Candidate {
	text := stripFences(raw)

	arr := firstArray(text)
	if arr == "" {
		return nil
	}

	var elems []map[string]any
	if err := json.Unmarshal([]byte(arr), &elems); err != nil {
		zap.L().Debug("leadgen: candidate array did not decode", zap.Error(err))
		return nil
	}

	out := make([]model.Candidate, 0, len(elems))
	for _, e := range elems {
		name := fieldString(e, "name")
		if name == "" {
			// Nameless entries are useless for dedup and outreach.
			continue
		}
		out = append(out, model.Candidate{
			Name:        name,
			Company:     fieldString(e, "company"),
			LinkedInURL: fieldString(e, "linkedin_url"),
			Website:     fieldString(e, "website"),
			Email:       strings.ToLower(fieldString(e, "email")),
			Phone:       fieldString(e, "phone"),
			Headline:    fieldString(e, "headline"),
		})
	}
	return out
}

// stripFences removes markdown code-fence lines so a fenced array
// still bracket-matches.
func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// firstArray returns the first balanced top-level [...] substring,
// tracking JSON string literals so brackets inside values don't
// break the match. Returns "" when no complete array is present.
func firstArray(s string) string {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// fieldString coerces a JSON value to a trimmed string; non-string
// scalars and nulls become "".
func fieldString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	str, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(str)
}
