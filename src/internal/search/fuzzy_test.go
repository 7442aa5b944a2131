package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testMatcher() *Matcher {
	return &Matcher{
		AuthorThreshold: 0.65,
		GenreOverlap:    0.6,
		GenreCutoff:     0.75,
	}
}

func TestMatchScore(t *testing.T) {
	m := testMatcher()

	t.Run("IdenticalStrings", func(t *testing.T) {
		assert.Equal(t, 1.0, m.MatchScore("test", "test"))
		assert.Equal(t, 1.0, m.MatchScore("ab", "ab"))
	})

	t.Run("TrailingTypoScoresHigh", func(t *testing.T) {
		// hirenn vs hiren: one edit, full prefix match, tiny length penalty.
		assert.InDelta(t, 0.967, m.MatchScore("hirenn", "hiren"), 0.005)
	})

	t.Run("PrefixBonusFavorsLeadingMatch", func(t *testing.T) {
		leading := m.MatchScore("mistery", "mystery")
		trailing := m.MatchScore("mysterx", "mystery")
		assert.Greater(t, trailing, leading)
	})

	t.Run("DisjointStringsScoreLow", func(t *testing.T) {
		assert.Less(t, m.MatchScore("thriller", "hiren"), 0.4)
	})

	t.Run("ClampedToUnitInterval", func(t *testing.T) {
		score := m.MatchScore("abc", "abc")
		assert.LessOrEqual(t, score, 1.0)
		assert.GreaterOrEqual(t, m.MatchScore("a", "zzzzzzzzzz"), 0.0)
	})
}

func TestMatchAuthor(t *testing.T) {
	m := testMatcher()
	authors := []string{"Hiren Patel", "Stephen King", "Agatha Christie"}

	t.Run("ExactCaseInsensitive", func(t *testing.T) {
		assert.Equal(t, "Stephen King", m.MatchAuthor("stephen king", authors))
	})

	t.Run("TypoResolvesToFullName", func(t *testing.T) {
		assert.Equal(t, "Hiren Patel", m.MatchAuthor("hirenn", authors))
	})

	t.Run("ComponentMatch", func(t *testing.T) {
		assert.Equal(t, "Agatha Christie", m.MatchAuthor("christie", authors))
	})

	t.Run("FirstNameBonusBreaksTies", func(t *testing.T) {
		// Both names contain "Stephen"; the first-name bonus must win even
		// when the surname match is seen first.
		got := m.MatchAuthor("stephen", []string{"Mary Stephen", "Stephen King"})
		assert.Equal(t, "Stephen King", got)
	})

	t.Run("NoMatchKeepsInput", func(t *testing.T) {
		assert.Equal(t, "xqzw", m.MatchAuthor("xqzw", authors))
	})

	t.Run("EmptyVocabulary", func(t *testing.T) {
		assert.Equal(t, "anyone", m.MatchAuthor("anyone", nil))
	})
}

func TestMatchGenre(t *testing.T) {
	m := testMatcher()
	genres := []string{"Science Fiction", "Mystery", "Thriller", "History"}

	t.Run("ExactCaseInsensitive", func(t *testing.T) {
		assert.Equal(t, "Mystery", m.MatchGenre("mystery", genres))
	})

	t.Run("SubstringContainment", func(t *testing.T) {
		// thrillers contains thriller; overlap 8/9 clears the floor.
		assert.Equal(t, "Thriller", m.MatchGenre("thrillers", genres))
	})

	t.Run("SubstringWithLowOverlapRejected", func(t *testing.T) {
		// sci is inside Science Fiction but covers too little of it.
		assert.Equal(t, "sci", m.MatchGenre("sci", genres))
	})

	t.Run("FuzzyCutoff", func(t *testing.T) {
		assert.Equal(t, "Mystery", m.MatchGenre("mistery", genres))
	})

	t.Run("NonsensePreserved", func(t *testing.T) {
		assert.Equal(t, "cooking", m.MatchGenre("cooking", genres))
	})

	t.Run("DistantVocabularyNotForced", func(t *testing.T) {
		assert.Equal(t, "science fiction", m.MatchGenre("science fiction", []string{"Education"}))
	})
}
