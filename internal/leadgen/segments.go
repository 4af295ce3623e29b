package leadgen

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrUnknownSegment is returned when a discovery run names a segment
// with no configured query variations.
var ErrUnknownSegment = eris.New("leadgen: unknown segment")

// Segment is a named target-market category with its ordered list of
// search query variations. Variations are issued serially, in order.
type Segment struct {
	Label   string   `yaml:"label"`
	Queries []string `yaml:"queries"`
}

// Catalog maps segment keys to their configuration.
type Catalog struct {
	Segments map[string]Segment `yaml:"segments"`
}

// LoadCatalog reads a segment catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "leadgen: read catalog %s", path)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "leadgen: parse catalog")
	}
	if len(c.Segments) == 0 {
		return nil, eris.New("leadgen: catalog has no segments")
	}
	return &c, nil
}

// DefaultCatalog returns the built-in segment catalog used when no
// catalog file is configured.
func DefaultCatalog() *Catalog {
	return &Catalog{Segments: map[string]Segment{
		"coaches_berater": {
			Label: "Coaches & Berater",
			Queries: []string{
				"self-employed business coaches and consultants in Germany with public websites",
				"independent executive coaches DACH region LinkedIn profiles",
				"freelance Unternehmensberater with contact details",
				"leadership trainers and systemic coaches Germany",
			},
		},
		"agenturen": {
			Label: "Agenturen",
			Queries: []string{
				"owners of small marketing agencies in Germany",
				"founders of web design agencies DACH with public contact pages",
				"social media agency managing directors Germany LinkedIn",
			},
		},
		"steuerberater": {
			Label: "Steuerberater",
			Queries: []string{
				"independent tax advisors in Germany with own practice",
				"Steuerberater Kanzlei owners with websites",
			},
		},
	}}
}

// Get returns the segment for key, or ErrUnknownSegment.
func (c *Catalog) Get(key string) (Segment, error) {
	seg, ok := c.Segments[key]
	if !ok || len(seg.Queries) == 0 {
		return Segment{}, eris.Wrapf(ErrUnknownSegment, "segment %q", key)
	}
	return seg, nil
}

// Keys returns the sorted segment keys, for listings.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.Segments))
	for k := range c.Segments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
