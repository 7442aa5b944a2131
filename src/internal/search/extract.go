package search

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/bookhive/bookhive/src/internal/oracle"
)

// ExtractedFilters are the structured filters pulled from free text. Nil
// fields were either not mentioned or failed validation.
type ExtractedFilters struct {
	Author   *string `json:"author"`
	Genre    *string `json:"genre"`
	Year     *int    `json:"published_year"`
	Keywords *string `json:"search_query"`
}

// Extractor converts free text into structured filters via the oracle.
// It is the safety net of the search cascade: oracle errors, malformed
// output, and rejected field values all degrade to using the raw query as
// keywords, never to a failed request.
type Extractor struct {
	oracle  oracle.Completer
	matcher *Matcher
	vocab   VocabSource
	logger  *zap.Logger
}

func NewExtractor(completer oracle.Completer, matcher *Matcher, vocab VocabSource, logger *zap.Logger) *Extractor {
	return &Extractor{oracle: completer, matcher: matcher, vocab: vocab, logger: logger}
}

// Extract pulls author, genre, year, and keyword filters out of query.
// The returned error is non-nil only when the vocabulary itself cannot be
// read from storage.
func (e *Extractor) Extract(ctx context.Context, query string) (ExtractedFilters, error) {
	if strings.TrimSpace(query) == "" {
		return ExtractedFilters{}, nil
	}

	authors, genres, err := FetchVocab(ctx, e.vocab)
	if err != nil {
		return ExtractedFilters{}, err
	}

	content, err := e.oracle.Complete(ctx, extractorPrompt(query, strings.Join(genres, ", ")), oracle.Options{
		Temperature: 0.3,
		MaxTokens:   150,
	})
	if err != nil {
		e.logger.Warn("filter extraction failed, using raw query",
			zap.String("reason", string(classifyOracleFailure(err))),
			zap.Error(err))
		return rawQueryFilters(query), nil
	}

	var raw struct {
		Author any `json:"author"`
		Genre  any `json:"genre"`
		Year   any `json:"published_year"`
		Query  any `json:"search_query"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(content, "json")), &raw); err != nil {
		e.logger.Warn("filter extraction returned malformed JSON", zap.Error(err))
		return rawQueryFilters(query), nil
	}

	var filters ExtractedFilters

	if author, ok := raw.Author.(string); ok {
		author = strings.TrimSpace(author)
		switch {
		case author == "":
		case len(authors) > 0:
			matched := e.matcher.MatchAuthor(author, authors)
			if matched != author {
				filters.Author = &matched
			} else if utf8.RuneCountInString(author) <= 200 {
				filters.Author = &author
			}
		case utf8.RuneCountInString(author) <= 200:
			filters.Author = &author
		}
	}

	if genre, ok := raw.Genre.(string); ok {
		genre = strings.TrimSpace(genre)
		switch {
		case genre == "":
		case len(genres) > 0:
			matched := e.matcher.MatchGenre(genre, genres)
			if matched != genre {
				filters.Genre = &matched
			} else if utf8.RuneCountInString(genre) <= 50 {
				filters.Genre = &genre
			}
		case utf8.RuneCountInString(genre) <= 50:
			filters.Genre = &genre
		}
	}

	switch v := raw.Year.(type) {
	case float64:
		if v == float64(int(v)) {
			year := int(v)
			if year >= 1000 && year <= 2100 {
				filters.Year = &year
			}
		}
	case string:
		if year, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && year >= 1000 && year <= 2100 {
			filters.Year = &year
		}
	}

	if keywords, ok := raw.Query.(string); ok {
		keywords = strings.TrimSpace(keywords)
		if keywords != "" && utf8.RuneCountInString(keywords) <= 500 {
			filters.Keywords = &keywords
		}
	}

	return filters, nil
}

func rawQueryFilters(query string) ExtractedFilters {
	return ExtractedFilters{Keywords: &query}
}
