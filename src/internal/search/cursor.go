package search

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Two cursor encodings coexist. Offset cursors page the ranked and
// predicate search paths, where ordering depends on a computed score.
// Compound cursors page keyset listings ordered by (created_at, id).

const cursorTimeFormat = time.RFC3339Nano

// EncodeOffsetCursor packs a result offset into an opaque cursor.
func EncodeOffsetCursor(offset int) string {
	data, _ := json.Marshal(map[string]int{"offset": offset})
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeOffsetCursor unpacks an offset cursor. A well-formed payload
// without an offset field decodes to zero.
func DecodeOffsetCursor(cursor string) (int, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	switch v := payload["offset"].(type) {
	case nil:
		return 0, nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: offset %q is not a number", ErrInvalidCursor, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: offset has unexpected type", ErrInvalidCursor)
	}
}

type compoundCursor struct {
	CreatedAt *string `json:"created_at"`
	ID        *int64  `json:"id"`
}

// EncodeCompoundCursor packs the sort key of the last item on a page.
func EncodeCompoundCursor(createdAt time.Time, id int64) string {
	ts := createdAt.UTC().Format(cursorTimeFormat)
	data, _ := json.Marshal(compoundCursor{CreatedAt: &ts, ID: &id})
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCompoundCursor unpacks a compound cursor into its sort key. Both
// fields must be present; an offset-style payload is rejected.
func DecodeCompoundCursor(cursor string) (time.Time, int64, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var payload compoundCursor
	if err := json.Unmarshal(raw, &payload); err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if payload.CreatedAt == nil || payload.ID == nil {
		return time.Time{}, 0, fmt.Errorf("%w: missing created_at or id", ErrInvalidCursor)
	}
	ts, err := time.Parse(cursorTimeFormat, *payload.CreatedAt)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return ts, *payload.ID, nil
}
