package search

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/bookhive/bookhive/src/internal/oracle"
)

// Translation is the outcome of one natural-language to predicate attempt.
// A zero Reason means WhereClause passed validation and is ready to
// execute.
type Translation struct {
	WhereClause string
	Reason      FailureReason
	Err         string
	// AttemptedClause keeps the rejected fragment when validation fails.
	AttemptedClause string
}

// Ok reports whether the translation produced an executable predicate.
func (t Translation) Ok() bool { return t.Reason == FailureNone }

// Translator turns free text into a validated WHERE-clause fragment via
// the oracle, then repairs misspelled author and genre values against the
// live vocabulary.
type Translator struct {
	oracle  oracle.Completer
	matcher *Matcher
	vocab   VocabSource
	logger  *zap.Logger
}

func NewTranslator(completer oracle.Completer, matcher *Matcher, vocab VocabSource, logger *zap.Logger) *Translator {
	return &Translator{oracle: completer, matcher: matcher, vocab: vocab, logger: logger}
}

var (
	authorValuePattern = regexp.MustCompile(`(?i)author\s+ILIKE\s+'%([^%]+)%'`)
	genreValuePattern  = regexp.MustCompile(`(?i)genre\s+ILIKE\s+'%([^%]+)%'`)
)

func (t *Translator) Translate(ctx context.Context, query string) Translation {
	if strings.TrimSpace(query) == "" {
		return Translation{Reason: FailureEmptyQuery, Err: "query cannot be empty"}
	}

	content, err := t.oracle.Complete(ctx, translatorPrompt(query), oracle.Options{
		Temperature: 0.2,
		MaxTokens:   300,
	})
	if err != nil {
		reason := classifyOracleFailure(err)
		t.logger.Warn("predicate translation failed",
			zap.String("reason", string(reason)),
			zap.Error(err))
		return Translation{Reason: reason, Err: err.Error()}
	}

	clause := stripCodeFences(content, "sql")
	if len(clause) >= 6 && strings.EqualFold(clause[:6], "where ") {
		clause = strings.TrimSpace(clause[6:])
	}

	if err := ValidateWhereClause(clause); err != nil {
		t.logger.Warn("generated predicate rejected",
			zap.String("clause", clause),
			zap.Error(err))
		return Translation{
			Reason:          FailureValidationFailed,
			Err:             fmt.Sprintf("generated WHERE clause failed validation: %v", err),
			AttemptedClause: clause,
		}
	}

	corrected, err := t.repairValues(ctx, clause)
	if err != nil {
		// The clause already passed validation; correction is best effort.
		t.logger.Warn("fuzzy repair skipped", zap.Error(err))
		corrected = clause
	}

	return Translation{WhereClause: corrected}
}

// repairValues substitutes fuzzy-matched author and genre values inside the
// generated clause, e.g. author ILIKE '%hirenn%' becomes '%Hiren Patel%'.
// The vocabulary is fetched only when the clause references those columns.
func (t *Translator) repairValues(ctx context.Context, clause string) (string, error) {
	authorVals := authorValuePattern.FindAllStringSubmatch(clause, -1)
	genreVals := genreValuePattern.FindAllStringSubmatch(clause, -1)
	if len(authorVals) == 0 && len(genreVals) == 0 {
		return clause, nil
	}

	authors, genres, err := FetchVocab(ctx, t.vocab)
	if err != nil {
		return clause, err
	}

	corrected := clause
	for _, m := range authorVals {
		value := m[1]
		if fixed := t.matcher.MatchAuthor(value, authors); fixed != value {
			corrected = strings.ReplaceAll(corrected,
				fmt.Sprintf("author ILIKE '%%%s%%'", value),
				fmt.Sprintf("author ILIKE '%%%s%%'", fixed))
			t.logger.Info("fuzzy matched author",
				zap.String("from", value), zap.String("to", fixed))
		}
	}
	for _, m := range genreVals {
		value := m[1]
		if fixed := t.matcher.MatchGenre(value, genres); fixed != value {
			corrected = strings.ReplaceAll(corrected,
				fmt.Sprintf("genre ILIKE '%%%s%%'", value),
				fmt.Sprintf("genre ILIKE '%%%s%%'", fixed))
			t.logger.Info("fuzzy matched genre",
				zap.String("from", value), zap.String("to", fixed))
		}
	}
	return corrected, nil
}

func classifyOracleFailure(err error) FailureReason {
	switch {
	case errors.Is(err, oracle.ErrAPIKeyMissing):
		return FailureAPIKeyMissing
	case errors.Is(err, oracle.ErrQuotaExceeded):
		return FailureQuotaExceeded
	case errors.Is(err, context.DeadlineExceeded):
		return FailureOracleTimeout
	default:
		return FailureOracleError
	}
}

// stripCodeFences removes a leading ```lang (or bare ```) fence and a
// trailing ``` fence from oracle output.
func stripCodeFences(content, lang string) string {
	out := strings.TrimSpace(content)
	if lang != "" {
		out = strings.TrimPrefix(out, "```"+lang)
	}
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSpace(out)
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}
