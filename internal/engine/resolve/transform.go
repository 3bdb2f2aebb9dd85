package resolve

import "strings"

// transform is a pure string modifier applied to a resolved placeholder.
type transform func(string) string

// transforms maps modifier names to their implementations. Unknown
// names are ignored by the resolver, so adding a transform here is the
// whole extension surface.
var transforms = map[string]transform{
	"capitalize": capitalize,
	"uppercase":  strings.ToUpper,
	"lowercase":  strings.ToLower,
	"plural":     pluralize,
	"singular":   singularize,
	"article":    article,
	"the":        definiteArticle,
}

// capitalize upper-cases the first character and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// pluralize applies regular English suffix rules. Irregular nouns are
// out of scope; table authors can write the plural directly.
func pluralize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "s"),
		strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "z"),
		strings.HasSuffix(lower, "ch"),
		strings.HasSuffix(lower, "sh"):
		return s + "es"
	case strings.HasSuffix(lower, "y") && len(s) > 1 && !isVowel(lower[len(lower)-2]):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(lower, "fe"):
		return s[:len(s)-2] + "ves"
	case strings.HasSuffix(lower, "f"):
		return s[:len(s)-1] + "ves"
	default:
		return s + "s"
	}
}

// singularize reverses the regular plural suffixes.
func singularize(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "ies") && len(s) > 3:
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(lower, "ves") && len(s) > 3:
		return s[:len(s)-3] + "f"
	case strings.HasSuffix(lower, "es") && len(s) > 2 && sibilantStem(lower[:len(lower)-2]):
		return s[:len(s)-2]
	case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") && len(s) > 1:
		return s[:len(s)-1]
	default:
		return s
	}
}

// sibilantStem reports whether stem ends in a sound that takes "es".
func sibilantStem(stem string) bool {
	return strings.HasSuffix(stem, "s") ||
		strings.HasSuffix(stem, "x") ||
		strings.HasSuffix(stem, "z") ||
		strings.HasSuffix(stem, "ch") ||
		strings.HasSuffix(stem, "sh")
}

// article prefixes "a " or "an " based on the leading vowel.
func article(s string) string {
	if s == "" {
		return s
	}
	if isVowel(strings.ToLower(s)[0]) {
		return "an " + s
	}
	return "a " + s
}

func definiteArticle(s string) string {
	return "the " + s
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
