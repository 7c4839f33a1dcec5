package taxonomy

import (
	"fmt"
)

// UnknownValue is the reserved bucket for attribute values that are missing
// from a candidate or absent from the snapshot vocabulary.
const UnknownValue = "unknown"

// Attribute is one categorical fashion attribute with its enumerated
// vocabulary, e.g. garmentType -> {dress, top, pants, jumpsuit, set}.
type Attribute struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Snapshot is a frozen view of the visual taxonomy for one curation run.
// Attribute order and vocabulary order are fixed, so every feature vector
// built against the same snapshot shares the same dimensionality and the
// same slot layout. The vocabulary must not change mid-run.
type Snapshot struct {
	Version    string      `json:"version"`
	Attributes []Attribute `json:"attributes"`
}

// Validate checks the snapshot contract: non-empty attribute names,
// non-empty vocabularies, no duplicate attributes or values, and no use of
// the reserved unknown bucket.
func (s *Snapshot) Validate() error {
	seen := make(map[string]bool, len(s.Attributes))
	for _, attr := range s.Attributes {
		if attr.Name == "" {
			return fmt.Errorf("taxonomy %q: attribute with empty name", s.Version)
		}
		if seen[attr.Name] {
			return fmt.Errorf("taxonomy %q: duplicate attribute %q", s.Version, attr.Name)
		}
		seen[attr.Name] = true

		if len(attr.Values) == 0 {
			return fmt.Errorf("taxonomy %q: attribute %q has empty vocabulary", s.Version, attr.Name)
		}
		values := make(map[string]bool, len(attr.Values))
		for _, v := range attr.Values {
			if v == UnknownValue {
				return fmt.Errorf("taxonomy %q: attribute %q uses reserved value %q", s.Version, attr.Name, UnknownValue)
			}
			if values[v] {
				return fmt.Errorf("taxonomy %q: attribute %q has duplicate value %q", s.Version, attr.Name, v)
			}
			values[v] = true
		}
	}
	return nil
}

// Vocabulary returns the ordered value list for an attribute.
func (s *Snapshot) Vocabulary(attribute string) ([]string, bool) {
	for _, attr := range s.Attributes {
		if attr.Name == attribute {
			return attr.Values, true
		}
	}
	return nil, false
}

// Has reports whether the snapshot enumerates the given attribute.
func (s *Snapshot) Has(attribute string) bool {
	_, ok := s.Vocabulary(attribute)
	return ok
}

// Dimension is the total feature vector length: one slot per vocabulary
// value plus the reserved unknown slot appended to each attribute block.
func (s *Snapshot) Dimension() int {
	dim := 0
	for _, attr := range s.Attributes {
		dim += len(attr.Values) + 1
	}
	return dim
}
