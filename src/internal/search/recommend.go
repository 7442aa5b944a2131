package search

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bookhive/bookhive/src/internal/oracle"
)

// HistoryEntry summarizes one book from a reader's history for the
// recommendation prompt.
type HistoryEntry struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
	Rating *int   `json:"rating,omitempty"`
}

// CandidateBook is one catalog entry offered to the recommender.
type CandidateBook struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
}

// Recommender asks the oracle to pick catalog books matching a reader's
// history. Every failure degrades to an empty result, never an error; a
// recommendation is decoration, not a dependency.
type Recommender struct {
	oracle oracle.Completer
	logger *zap.Logger
}

func NewRecommender(completer oracle.Completer, logger *zap.Logger) *Recommender {
	return &Recommender{oracle: completer, logger: logger}
}

// Recommend returns up to limit IDs drawn from available, ordered by the
// oracle's preference. IDs outside available are filtered by the caller.
func (r *Recommender) Recommend(ctx context.Context, borrowed, reviewed []HistoryEntry, available []CandidateBook, genre string, limit int) []int64 {
	if len(available) == 0 {
		return nil
	}

	availableJSON, err := json.MarshalIndent(available, "", "  ")
	if err != nil {
		return nil
	}
	prompt := recommendPrompt(
		marshalHistory(borrowed),
		marshalHistory(reviewed),
		string(availableJSON),
		genre,
		limit,
	)

	content, err := r.oracle.Complete(ctx, prompt, oracle.Options{
		Temperature: 0.7,
		MaxTokens:   200,
	})
	if err != nil {
		r.logger.Warn("recommendation failed",
			zap.String("reason", string(classifyOracleFailure(err))),
			zap.Error(err))
		return nil
	}

	var ids []any
	if err := json.Unmarshal([]byte(stripCodeFences(content, "json")), &ids); err != nil {
		r.logger.Warn("recommendation returned malformed JSON", zap.Error(err))
		return nil
	}

	valid := make([]int64, 0, len(ids))
	for _, id := range ids {
		switch v := id.(type) {
		case float64:
			if v == float64(int64(v)) && v >= 0 {
				valid = append(valid, int64(v))
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n >= 0 {
				valid = append(valid, n)
			}
		}
		if len(valid) == limit {
			break
		}
	}
	return valid
}

func marshalHistory(entries []HistoryEntry) string {
	if len(entries) == 0 {
		return "[]"
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(data)
}
