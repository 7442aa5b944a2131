package search

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Matcher resolves misspelled author and genre values against the live
// vocabulary pulled from storage. Zero-value thresholds match nothing;
// callers construct it with explicit cutoffs.
type Matcher struct {
	// AuthorThreshold is the minimum score at which a candidate author
	// replaces the input.
	AuthorThreshold float64
	// GenreOverlap is the minimum length ratio for substring containment
	// to count as a genre match.
	GenreOverlap float64
	// GenreCutoff is the minimum score at which a candidate genre
	// replaces the input.
	GenreCutoff float64
}

// MatchScore scores how closely candidate resembles query. It combines a
// character-level similarity ratio with a prefix bonus (typos cluster at
// the end of words) and a penalty for large length differences. The result
// is clamped to [0, 1].
func (m *Matcher) MatchScore(query, candidate string) float64 {
	score := similarityRatio(query, candidate)

	q, c := []rune(query), []rune(candidate)
	minLen := min(len(q), len(c))
	if minLen >= 3 {
		prefix := 0
		for i := 0; i < minLen && q[i] == c[i]; i++ {
			prefix++
		}
		score += float64(prefix) / float64(minLen) * 0.15
	}

	maxLen := max(len(q), len(c))
	if maxLen > 0 {
		score -= float64(maxLen-minLen) / float64(maxLen) * 0.1
	}

	return math.Max(0, math.Min(1, score))
}

// MatchAuthor resolves input against the known author names. Each full name
// is scored as a whole and per name component, with a bonus when the
// component is the first name. Below the threshold the input is returned
// unchanged.
func (m *Matcher) MatchAuthor(input string, authors []string) string {
	for _, a := range authors {
		if strings.EqualFold(a, input) {
			return a
		}
	}

	lowered := strings.ToLower(input)
	var best string
	var bestScore float64
	for _, full := range authors {
		parts := strings.Fields(full)
		candidates := append([]string{full}, parts...)
		for _, cand := range candidates {
			score := m.MatchScore(lowered, strings.ToLower(cand))
			if len(parts) > 0 && cand == parts[0] {
				score += 0.1
			}
			if score > bestScore {
				bestScore = score
				best = full
			}
		}
	}
	if bestScore >= m.AuthorThreshold {
		return best
	}
	return input
}

// MatchGenre resolves input against the known genres: exact match first,
// then substring containment with sufficient length overlap ("sci" inside
// "Sci-Fi"), then full fuzzy scoring with a strict cutoff. Below the cutoff
// the input is returned unchanged.
func (m *Matcher) MatchGenre(input string, genres []string) string {
	for _, g := range genres {
		if strings.EqualFold(g, input) {
			return g
		}
	}

	lowered := strings.ToLower(input)
	for _, g := range genres {
		gl := strings.ToLower(g)
		if strings.Contains(gl, lowered) || strings.Contains(lowered, gl) {
			shorter := utf8.RuneCountInString(lowered)
			longer := utf8.RuneCountInString(gl)
			if shorter > longer {
				shorter, longer = longer, shorter
			}
			if longer > 0 && float64(shorter)/float64(longer) >= m.GenreOverlap {
				return g
			}
		}
	}

	var best string
	var bestScore float64
	for _, g := range genres {
		if score := m.MatchScore(lowered, strings.ToLower(g)); score > bestScore {
			bestScore = score
			best = g
		}
	}
	if bestScore >= m.GenreCutoff {
		return best
	}
	return input
}

func similarityRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
