// Package vocab owns the allowed style vocabulary: loading the
// artifact, zone-partitioned membership checks, and normalization of
// raw model output into vocabulary-valid tags.
package vocab

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jonathan/style-tagger/internal/schemas"
)

// GenericTag is the guaranteed-member fallback for body text. Loading
// fails if the artifact does not contain it.
const GenericTag = "TXT"

// MetadataTag is the only style legal in the METADATA zone.
const MetadataTag = "PMI"

// artifact is the on-disk shape of the vocabulary file.
type artifact struct {
	Styles []string            `json:"styles"`
	Zones  map[string][]string `json:"zones,omitempty"`
}

// Vocabulary is the immutable set of allowed styles with per-zone
// constraint patterns. Safe for concurrent readers.
type Vocabulary struct {
	styles map[string]struct{}
	sorted []string
	zones  map[string][]string
}

// DefaultZoneConstraints lists the styles legal in each constrained
// zone. Patterns ending in '*' match by prefix. BODY is absent on
// purpose: it carries the full style range.
func DefaultZoneConstraints() map[string][]string {
	return map[string][]string{
		"METADATA": {MetadataTag},
		"FRONT_MATTER": {
			"CN", "CT", "CST", "CAU", "CHAP",
			"OBJ1", "OBJ-*",
			"COUT-1", "COUT-2", "KT1", "KT-*",
			"TXT", "TXT-*", "H1", "H2", "H3", "H11", "H12",
			"BL-*", "NL-*", "UL-*",
			"BX1-*", "BX2-*", "BX3-*", "BX4-*",
			"PMI", "QUO", "TSN",
			"SR*", "REF*", "REFH*",
		},
		"TABLE": {
			"T", "T1", "T2", "T2-C", "T3", "T4", "T5", "TD",
			"TH1", "TH2", "TH3", "TH4", "TH5", "TH6",
			"TBL-FIRST", "TBL-MID", "TBL-LAST", "TBL2-MID",
			"TNL-FIRST", "TNL-MID", "TUL-MID",
			"TFN", "TSN",
			"PMI",
		},
		"BOX_NBX": {
			"NBX-*", "Box-01-*",
			"H1", "H2", "H3",
			"TXT", "TXT-*", "BL-*", "NL-*", "UL-*",
			"PMI",
		},
		"BOX_BX1": {"BX1-*", "H1", "H2", "H3", "TXT", "TXT-*", "BL-*", "NL-*", "UL-*", "PMI"},
		"BOX_BX2": {"BX2-*", "H1", "H2", "H3", "TXT", "TXT-*", "BL-*", "NL-*", "UL-*", "PMI"},
		"BOX_BX3": {"BX3-*", "H1", "H2", "H3", "TXT", "TXT-*", "BL-*", "NL-*", "UL-*", "PMI"},
		"BOX_BX4": {"BX4-*", "H1", "H2", "H3", "TXT", "TXT-*", "BL-*", "NL-*", "UL-*", "PMI"},
		"BACK_MATTER": {
			"REF-N", "REF-U", "REFH1", "REFH2", "SR", "SRH1",
			"EOC-*",
			"BL-*", "NL-*", "UL-*",
			"GLOS-*", "IDX-*", "APX-*",
			"PMI",
		},
	}
}

// Load reads and validates a vocabulary artifact.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary from %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates vocabulary JSON and builds the Vocabulary. Zone
// constraints default to DefaultZoneConstraints when the artifact
// omits them.
func Parse(data []byte) (*Vocabulary, error) {
	if err := schemas.Validate(schemas.VocabularySchema, string(data)); err != nil {
		return nil, fmt.Errorf("vocabulary artifact rejected: %w", err)
	}
	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	zones := art.Zones
	if len(zones) == 0 {
		zones = DefaultZoneConstraints()
	}
	return New(art.Styles, zones)
}

// New builds a Vocabulary from explicit lists. The generic text tag
// must be a member.
func New(styles []string, zones map[string][]string) (*Vocabulary, error) {
	v := &Vocabulary{
		styles: make(map[string]struct{}, len(styles)),
		zones:  zones,
	}
	for _, s := range styles {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := v.styles[s]; dup {
			continue
		}
		v.styles[s] = struct{}{}
		v.sorted = append(v.sorted, s)
	}
	sort.Strings(v.sorted)

	if !v.Has(GenericTag) {
		return nil, fmt.Errorf("vocabulary must contain the generic tag %q", GenericTag)
	}
	return v, nil
}

// Has reports vocabulary membership.
func (v *Vocabulary) Has(tag string) bool {
	_, ok := v.styles[tag]
	return ok
}

// List returns all styles in sorted order.
func (v *Vocabulary) List() []string {
	return v.sorted
}

// Len returns the vocabulary size.
func (v *Vocabulary) Len() int {
	return len(v.sorted)
}

// AllowedInZone reports whether a style may appear in a zone. Zones
// without constraints (BODY, unknown zones) allow the full range.
// Patterns ending in '*' match by prefix.
func (v *Vocabulary) AllowedInZone(style, zone string) bool {
	patterns, constrained := v.zones[zone]
	if !constrained || patterns == nil {
		return true
	}
	for _, p := range patterns {
		if prefix, wildcard := strings.CutSuffix(p, "*"); wildcard {
			if strings.HasPrefix(style, prefix) {
				return true
			}
		} else if style == p {
			return true
		}
	}
	return false
}

// ZonePatterns returns the constraint patterns for a zone, nil when
// the zone is unconstrained.
func (v *Vocabulary) ZonePatterns(zone string) []string {
	return v.zones[zone]
}
