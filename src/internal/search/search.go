// Package search implements the book discovery cascade: ranked full-text
// retrieval with trigram scoring on PostgreSQL, a pattern-match fallback
// with keyword variant expansion, and the guarded natural-language
// translation pipeline that feeds both.
package search

import "errors"

// ErrInvalidCursor reports a pagination cursor that cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor format")

// FailureReason classifies why the translation stage produced no executable
// predicate. The orchestrator logs it and returns it to the caller when the
// extraction fallback is used.
type FailureReason string

const (
	FailureNone             FailureReason = ""
	FailureEmptyQuery       FailureReason = "empty_query"
	FailureAPIKeyMissing    FailureReason = "api_key_missing"
	FailureValidationFailed FailureReason = "validation_failed"
	FailureQuotaExceeded    FailureReason = "quota_exceeded"
	FailureOracleTimeout    FailureReason = "oracle_timeout"
	FailureOracleError      FailureReason = "oracle_error"
)
