package search

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// The validator gates every generated predicate before execution. It is
// deny-by-default: only the fixed column, function, and operator vocabulary
// below may appear outside string literals, and a small keyword list is
// rejected even inside them, including close misspellings.

const keywordFuzzThreshold = 0.65

var forbiddenKeywords = []string{
	"delete", "drop", "update", "insert", "alter", "exec", "union", "join",
}

var (
	allowedColumns = map[string]struct{}{
		"title": {}, "description": {}, "author": {}, "genre": {},
		"isbn": {}, "published_date": {},
	}
	allowedFunctions = map[string]struct{}{
		"extract": {}, "date_part": {}, "year": {}, "lower": {}, "upper": {},
	}
	predicateWords = map[string]struct{}{
		"and": {}, "or": {}, "not": {}, "like": {}, "ilike": {}, "in": {},
		"is": {}, "null": {}, "between": {}, "from": {}, "month": {},
		"true": {}, "false": {},
	}
)

var (
	wordPattern     = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
	stringPattern   = regexp.MustCompile(`'[^']*'`)
	subqueryPattern = regexp.MustCompile(`\(\s*select\b`)
	funcCallPattern = regexp.MustCompile(`([a-z_][a-z0-9_]*)\s*\(`)
)

// ValidateWhereClause checks a WHERE-clause fragment (without the WHERE
// keyword) against the predicate allowlist. A nil return means the clause
// is safe to execute; the error text names the first rule violated.
func ValidateWhereClause(clause string) error {
	trimmed := strings.TrimSpace(clause)
	if trimmed == "" {
		return errors.New("WHERE clause cannot be empty")
	}
	if strings.Contains(trimmed, ";") {
		return errors.New("Multiple statements are not allowed")
	}
	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") || strings.Contains(trimmed, "*/") {
		return errors.New("SQL comments are not allowed")
	}

	lowered := strings.ToLower(trimmed)

	// Keyword scan runs over the raw text, string literals included, so a
	// quoted payload cannot smuggle a statement past the check.
	for _, token := range wordPattern.FindAllString(lowered, -1) {
		if isPredicateVocabulary(token) {
			continue
		}
		for _, kw := range forbiddenKeywords {
			if token == kw {
				return fmt.Errorf("Forbidden SQL keyword detected: %s", strings.ToUpper(kw))
			}
			if similarityRatio(token, kw) >= keywordFuzzThreshold {
				return fmt.Errorf("Forbidden SQL keyword detected: %q resembles %s", token, strings.ToUpper(kw))
			}
		}
	}

	if subqueryPattern.MatchString(lowered) {
		return errors.New("Subqueries are not allowed")
	}

	stripped := stringPattern.ReplaceAllString(lowered, "''")

	for _, match := range funcCallPattern.FindAllStringSubmatch(stripped, -1) {
		name := match[1]
		if _, ok := predicateWords[name]; ok {
			continue
		}
		if _, ok := allowedFunctions[name]; ok {
			continue
		}
		return fmt.Errorf("Disallowed SQL functions are not permitted: %s", strings.ToUpper(name))
	}

	for _, token := range wordPattern.FindAllString(stripped, -1) {
		if isPredicateVocabulary(token) {
			continue
		}
		return fmt.Errorf("Column '%s' is not allowed", token)
	}

	if strings.Count(stripped, "(") != strings.Count(stripped, ")") {
		return errors.New("Unbalanced parentheses in WHERE clause")
	}

	return nil
}

func isPredicateVocabulary(token string) bool {
	if _, ok := allowedColumns[token]; ok {
		return true
	}
	if _, ok := allowedFunctions[token]; ok {
		return true
	}
	_, ok := predicateWords[token]
	return ok
}

// SanitizeValue quotes a literal for embedding in a predicate, doubling any
// single quotes it contains.
func SanitizeValue(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
