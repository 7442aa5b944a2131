package search

import (
	"strings"
	"unicode/utf8"
)

// Keyword is one significant search term together with the pattern variants
// it should match under: the literal token, domain synonyms, abbreviation
// expansions, and basic plural and verb-suffix forms.
type Keyword struct {
	Token    string
	Variants []string
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "any": {}, "me": {}, "my": {},
	"find": {}, "show": {}, "get": {},
}

var abbreviations = map[string]string{
	"db":  "database",
	"ai":  "artificial intelligence",
	"ml":  "machine learning",
	"dl":  "deep learning",
	"nlp": "natural language processing",
	"api": "application programming interface",
	"sql": "structured query language",
	"ui":  "user interface",
	"ux":  "user experience",
	"js":  "javascript",
	"py":  "python",
	"cs":  "computer science",
	"it":  "information technology",
	"iot": "internet of things",
	"ci":  "continuous integration",
	"cd":  "continuous deployment",
}

var synonyms = map[string][]string{
	"underwater": {"deep-sea", "ocean", "submarine", "aquatic"},
	"deep-sea":   {"underwater", "ocean", "submarine"},
	"ocean":      {"underwater", "deep-sea", "sea", "marine"},
	"space":      {"galaxy", "cosmic", "universe", "stellar"},
	"galaxy":     {"space", "cosmic", "universe", "stellar"},
	"ancient":    {"old", "historical", "antiquity"},
	"old":        {"ancient", "historical", "vintage"},
	"future":     {"futuristic", "tomorrow", "advanced"},
	"futuristic": {"future", "tomorrow", "advanced"},
	"scary":      {"horror", "frightening", "terrifying"},
	"horror":     {"scary", "frightening", "terrifying"},
}

// Normalize splits free text into significant keywords with their match
// variants. Stop words are dropped, as are tokens of two characters or
// fewer unless they are known abbreviations.
func Normalize(query string) []Keyword {
	var keywords []Keyword
	for _, token := range strings.Fields(strings.ToLower(query)) {
		if _, ok := stopWords[token]; ok {
			continue
		}
		_, abbrev := abbreviations[token]
		if utf8.RuneCountInString(token) <= 2 && !abbrev {
			continue
		}
		keywords = append(keywords, Keyword{Token: token, Variants: expandVariants(token)})
	}
	return keywords
}

// Keywords splits free text into plain keywords with no variant expansion.
// This is the reduced form used by the extraction-fallback search tier.
func Keywords(query string) []string {
	var out []string
	for _, token := range strings.Fields(strings.ToLower(query)) {
		if _, ok := stopWords[token]; ok {
			continue
		}
		if utf8.RuneCountInString(token) <= 2 {
			continue
		}
		out = append(out, token)
	}
	return out
}

func expandVariants(token string) []string {
	variants := []string{token}

	if syns, ok := synonyms[token]; ok {
		variants = append(variants, syns...)
	}

	if full, ok := abbreviations[token]; ok {
		variants = append(variants, full)
		if !strings.HasSuffix(full, "s") {
			variants = append(variants, full+"s")
		}
	}

	if !strings.HasSuffix(token, "s") {
		variants = append(variants, token+"s")
	}
	if strings.HasSuffix(token, "s") && utf8.RuneCountInString(token) > 3 {
		variants = append(variants, token[:len(token)-1])
	}

	// coding -> cod, code; coded -> cod, code
	if strings.HasSuffix(token, "ing") && utf8.RuneCountInString(token) > 4 {
		base := token[:len(token)-3]
		variants = append(variants, base, base+"e")
	}
	if strings.HasSuffix(token, "ed") && utf8.RuneCountInString(token) > 3 {
		base := token[:len(token)-2]
		variants = append(variants, base, base+"e")
	}

	return dedupe(variants)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
