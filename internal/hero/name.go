package hero

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	versionSuffix = regexp.MustCompile(`[_ ]*v\d+$`)
	numericSuffix = regexp.MustCompile(`_\d+$`)
	separators    = regexp.MustCompile(`[-_]+`)
	spaces        = regexp.MustCompile(`\s+`)
)

// variantSuffixes are stripped in this order after the numeric suffixes.
var variantSuffixes = []string{"_icon", "_template", "_small", "_left", "_right", "_horizontal", "_adv", "_padded"}

// CanonicalName derives a hero identity from a reference file stem, so that
// "iron_man_2", "Iron-Man_v3" and "iron_man_icon" all become "Iron Man".
func CanonicalName(stem string) string {
	name := strings.ToLower(strings.TrimSpace(stem))
	if name == "" {
		return ""
	}
	name = versionSuffix.ReplaceAllString(name, "")
	name = numericSuffix.ReplaceAllString(name, "")
	for _, suffix := range variantSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}
	name = separators.ReplaceAllString(name, " ")
	name = strings.TrimSpace(spaces.ReplaceAllString(name, " "))

	// A Caser keeps state and is not safe for concurrent use.
	return cases.Title(language.English).String(name)
}
