package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateWhereClause(t *testing.T) {
	t.Run("ValidClauses", func(t *testing.T) {
		clauses := []string{
			"title ILIKE '%python%'",
			"title ILIKE '%python%' AND genre = 'Technology'",
			"title ILIKE '%python%' OR description ILIKE '%programming%'",
			"(title ILIKE '%python%' OR description ILIKE '%python%') AND genre = 'Technology'",
			"author ILIKE '%stephen king%'",
			"title NOT ILIKE '%test%'",
			"genre = 'Fiction'",
			"EXTRACT(YEAR FROM published_date) = 2020",
			"EXTRACT(YEAR FROM published_date) >= 2018 AND EXTRACT(YEAR FROM published_date) <= 2022",
			"EXTRACT(YEAR FROM published_date) = 2024 AND EXTRACT(MONTH FROM published_date) <= 6",
			"genre IN ('Fiction', 'Mystery')",
			"title IS NOT NULL",
			"published_date BETWEEN '2020-01-01' AND '2020-12-31'",
			"lower(title) LIKE '%sql%'",
		}
		for _, clause := range clauses {
			assert.NoError(t, ValidateWhereClause(clause), "should be valid: %s", clause)
		}
	})

	t.Run("RejectsMultipleStatements", func(t *testing.T) {
		err := ValidateWhereClause("title ILIKE '%test%'; DELETE FROM books")
		assert.ErrorContains(t, err, "Multiple statements")

		assert.Error(t, ValidateWhereClause("title ILIKE '%test%' OR 1=1; DROP TABLE books"))
		assert.Error(t, ValidateWhereClause("title ILIKE '%test%'; UPDATE books SET price=0"))
		assert.Error(t, ValidateWhereClause("title ILIKE '%test%'; INSERT INTO books VALUES (...)"))
		assert.Error(t, ValidateWhereClause("title ILIKE '%test%'; ALTER TABLE books ADD COLUMN hacked INT"))
		assert.Error(t, ValidateWhereClause("title ILIKE '%test%'; SELECT * FROM users"))
		assert.Error(t, ValidateWhereClause("title ILIKE '%test%'; DeLeTe FROM books"))
	})

	t.Run("RejectsForbiddenKeywords", func(t *testing.T) {
		err := ValidateWhereClause("title ILIKE '%test%' UNION SELECT * FROM users")
		assert.ErrorContains(t, err, "UNION")

		err = ValidateWhereClause("EXEC sp_executesql 'malicious code'")
		assert.ErrorContains(t, err, "EXEC")

		err = ValidateWhereClause("books.title ILIKE '%test%' JOIN users ON books.user_id = users.id")
		assert.ErrorContains(t, err, "JOIN")
	})

	t.Run("RejectsKeywordsInsideStringLiterals", func(t *testing.T) {
		// The keyword scan runs before literals are stripped.
		err := ValidateWhereClause("title ILIKE '%drop table%'")
		assert.ErrorContains(t, err, "DROP")
	})

	t.Run("RejectsSubqueries", func(t *testing.T) {
		err := ValidateWhereClause("title IN (SELECT title FROM books WHERE id > 10)")
		assert.ErrorContains(t, err, "Subqueries")

		err = ValidateWhereClause("author IN (  select author FROM books)")
		assert.ErrorContains(t, err, "Subqueries")
	})

	t.Run("RejectsComments", func(t *testing.T) {
		err := ValidateWhereClause("title ILIKE '%test%' -- malicious comment")
		assert.ErrorContains(t, err, "comments")

		err = ValidateWhereClause("title ILIKE '%test%' /* comment */")
		assert.ErrorContains(t, err, "comments")
	})

	t.Run("RejectsUnknownColumns", func(t *testing.T) {
		err := ValidateWhereClause("password ILIKE '%admin%'")
		assert.ErrorContains(t, err, "Column 'password' is not allowed")

		err = ValidateWhereClause("email = 'x'")
		assert.ErrorContains(t, err, "Column 'email'")
	})

	t.Run("RejectsUnbalancedParentheses", func(t *testing.T) {
		err := ValidateWhereClause("(title ILIKE '%test%' AND genre = 'Fiction'")
		assert.ErrorContains(t, err, "parentheses")
	})

	t.Run("RejectsDisallowedFunctions", func(t *testing.T) {
		err := ValidateWhereClause("title ILIKE CONCAT('%', 'test', '%')")
		assert.ErrorContains(t, err, "functions")
		assert.ErrorContains(t, err, "CONCAT")
	})

	t.Run("RejectsEmptyClause", func(t *testing.T) {
		err := ValidateWhereClause("")
		assert.ErrorContains(t, err, "empty")

		assert.Error(t, ValidateWhereClause("   "))
	})

	t.Run("RejectsKeywordTypos", func(t *testing.T) {
		cases := []struct {
			clause  string
			keyword string
		}{
			{"delect all book releted education", "DELETE"},
			{"delet FROM books WHERE title ILIKE '%test%'", "DELETE"},
			{"updat books SET price=0", "UPDATE"},
			{"drp TABLE books", "DROP"},
			{"insrt INTO books VALUES (...)", "INSERT"},
			{"deleted FROM books", "DELETE"},
			{"deletes all records", "DELETE"},
		}
		for _, tc := range cases {
			err := ValidateWhereClause(tc.clause)
			assert.ErrorContains(t, err, "Forbidden SQL keyword", "clause: %s", tc.clause)
			assert.ErrorContains(t, err, tc.keyword, "clause: %s", tc.clause)
		}
	})

	t.Run("TypoDetectionSparesOrdinaryWords", func(t *testing.T) {
		// Search vocabulary must not trip the fuzzy keyword matcher.
		assert.NoError(t, ValidateWhereClause("title ILIKE '%adventure%' OR description ILIKE '%history%'"))
		assert.NoError(t, ValidateWhereClause("genre = 'Drama' AND author ILIKE '%Tolkien%'"))
	})
}

func TestSanitizeValue(t *testing.T) {
	assert.Equal(t, "'test'", SanitizeValue("test"))
	assert.Equal(t, "'O''Reilly'", SanitizeValue("O'Reilly"))
	assert.Equal(t, "'It''s a ''test'''", SanitizeValue("It's a 'test'"))
}
