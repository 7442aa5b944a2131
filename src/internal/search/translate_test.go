package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bookhive/bookhive/src/internal/oracle"
)

type fakeOracle struct {
	response   string
	err        error
	calls      int
	lastPrompt string
	lastOpts   oracle.Options
}

func (f *fakeOracle) Complete(_ context.Context, prompt string, opts oracle.Options) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	f.lastOpts = opts
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeVocab struct {
	authors []string
	genres  []string
	err     error
	reads   int
}

func (f *fakeVocab) Authors(context.Context) ([]string, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	return f.authors, nil
}

func (f *fakeVocab) Genres(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.genres, nil
}

func newTestTranslator(o oracle.Completer, v VocabSource) *Translator {
	return NewTranslator(o, testMatcher(), v, zap.NewNop())
}

func TestTranslate(t *testing.T) {
	ctx := context.Background()

	t.Run("StripsFencesAndWherePrefix", func(t *testing.T) {
		o := &fakeOracle{response: "```sql\nWHERE title ILIKE '%python%'\n```"}
		tr := newTestTranslator(o, &fakeVocab{})

		res := tr.Translate(ctx, "books about python")
		assert.True(t, res.Ok())
		assert.Equal(t, "title ILIKE '%python%'", res.WhereClause)
		assert.Contains(t, o.lastPrompt, "books about python")
		assert.Equal(t, float32(0.2), o.lastOpts.Temperature)
		assert.Equal(t, 300, o.lastOpts.MaxTokens)
	})

	t.Run("BareClausePassesThrough", func(t *testing.T) {
		o := &fakeOracle{response: "genre = 'Fiction'"}
		tr := newTestTranslator(o, &fakeVocab{})

		res := tr.Translate(ctx, "fiction books")
		assert.True(t, res.Ok())
		assert.Equal(t, "genre = 'Fiction'", res.WhereClause)
	})

	t.Run("LowercaseWherePrefix", func(t *testing.T) {
		o := &fakeOracle{response: "where genre = 'Fiction'"}
		tr := newTestTranslator(o, &fakeVocab{})

		res := tr.Translate(ctx, "fiction books")
		assert.True(t, res.Ok())
		assert.Equal(t, "genre = 'Fiction'", res.WhereClause)
	})

	t.Run("EmptyQuery", func(t *testing.T) {
		o := &fakeOracle{response: "unused"}
		tr := newTestTranslator(o, &fakeVocab{})

		res := tr.Translate(ctx, "   ")
		assert.False(t, res.Ok())
		assert.Equal(t, FailureEmptyQuery, res.Reason)
		assert.Zero(t, o.calls)
	})

	t.Run("RejectedClauseIsDropped", func(t *testing.T) {
		o := &fakeOracle{response: "1=1; DROP TABLE books"}
		tr := newTestTranslator(o, &fakeVocab{})

		res := tr.Translate(ctx, "drop everything")
		assert.False(t, res.Ok())
		assert.Equal(t, FailureValidationFailed, res.Reason)
		assert.Empty(t, res.WhereClause)
		assert.Equal(t, "1=1; DROP TABLE books", res.AttemptedClause)
		assert.Contains(t, res.Err, "failed validation")
	})

	t.Run("OracleFailureClassification", func(t *testing.T) {
		cases := []struct {
			err    error
			reason FailureReason
		}{
			{oracle.ErrAPIKeyMissing, FailureAPIKeyMissing},
			{fmt.Errorf("chat completion: %w", oracle.ErrQuotaExceeded), FailureQuotaExceeded},
			{context.DeadlineExceeded, FailureOracleTimeout},
			{errors.New("connection reset"), FailureOracleError},
		}
		for _, tc := range cases {
			tr := newTestTranslator(&fakeOracle{err: tc.err}, &fakeVocab{})
			res := tr.Translate(ctx, "books about space")
			assert.False(t, res.Ok())
			assert.Equal(t, tc.reason, res.Reason, "error: %v", tc.err)
			assert.NotEmpty(t, res.Err)
		}
	})

	t.Run("RepairsMisspelledAuthor", func(t *testing.T) {
		o := &fakeOracle{response: "author ILIKE '%hirenn%'"}
		v := &fakeVocab{authors: []string{"Hiren Patel"}}
		tr := newTestTranslator(o, v)

		res := tr.Translate(ctx, "books by hirenn")
		assert.True(t, res.Ok())
		assert.Equal(t, "author ILIKE '%Hiren Patel%'", res.WhereClause)
	})

	t.Run("RepairsMisspelledGenre", func(t *testing.T) {
		o := &fakeOracle{response: "genre ILIKE '%mistery%' AND EXTRACT(YEAR FROM published_date) = 2020"}
		v := &fakeVocab{genres: []string{"Mystery", "Thriller"}}
		tr := newTestTranslator(o, v)

		res := tr.Translate(ctx, "mistery books from 2020")
		assert.True(t, res.Ok())
		assert.Equal(t, "genre ILIKE '%Mystery%' AND EXTRACT(YEAR FROM published_date) = 2020", res.WhereClause)
	})

	t.Run("VocabularySkippedWithoutAuthorOrGenre", func(t *testing.T) {
		o := &fakeOracle{response: "title ILIKE '%go%'"}
		v := &fakeVocab{authors: []string{"unused"}}
		tr := newTestTranslator(o, v)

		res := tr.Translate(ctx, "go books")
		assert.True(t, res.Ok())
		assert.Zero(t, v.reads)
	})

	t.Run("VocabularyFailureKeepsValidatedClause", func(t *testing.T) {
		o := &fakeOracle{response: "author ILIKE '%hirenn%'"}
		v := &fakeVocab{err: errors.New("connection refused")}
		tr := newTestTranslator(o, v)

		res := tr.Translate(ctx, "books by hirenn")
		assert.True(t, res.Ok())
		assert.Equal(t, "author ILIKE '%hirenn%'", res.WhereClause)
	})
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, "a = 1", stripCodeFences("```sql\na = 1\n```", "sql"))
	assert.Equal(t, "a = 1", stripCodeFences("```\na = 1\n```", "sql"))
	assert.Equal(t, "a = 1", stripCodeFences("  a = 1  ", "sql"))
	assert.Equal(t, `{"x": 1}`, stripCodeFences("```json\n{\"x\": 1}\n```", "json"))
}
