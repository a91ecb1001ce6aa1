package hero

import (
	"fmt"
)

// Provenance records how an entry of the final result was established.
type Provenance int

const (
	// EmbeddingOnly entries passed the decision threshold without a localizer hit.
	EmbeddingOnly Provenance = iota
	// LocalizerConfirmed entries are localizer hits corroborated by an embedding match.
	LocalizerConfirmed
	// LocalizerOnly entries are localizer hits with no embedding corroboration.
	LocalizerOnly
)

func (p Provenance) String() string {
	switch p {
	case EmbeddingOnly:
		return "embedding_only"
	case LocalizerConfirmed:
		return "localizer_confirmed"
	case LocalizerOnly:
		return "localizer_only"
	default:
		return fmt.Sprintf("provenance(%d)", int(p))
	}
}

// MarshalText encodes the provenance by name.
func (p Provenance) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Entry is one recognized hero.
type Entry struct {
	Name       string     `json:"name"`
	Provenance Provenance `json:"provenance"`
	// Confidence is the backing embedding similarity; zero for LocalizerOnly.
	Confidence float64 `json:"confidence"`
	// MatchCount is the localizer match count; zero for EmbeddingOnly.
	MatchCount int  `json:"match_count,omitempty"`
	Rect       Rect `json:"rect"`
}

// Result is the ordered, top-to-bottom list of recognized heroes.
type Result struct {
	Entries []Entry `json:"entries"`
}

// Names returns the hero names in on-screen order.
func (r Result) Names() []string {
	names := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of recognized heroes.
func (r Result) Len() int { return len(r.Entries) }

// Contains reports whether name was recognized.
func (r Result) Contains(name string) bool {
	for _, e := range r.Entries {
		if e.Name == name {
			return true
		}
	}
	return false
}
