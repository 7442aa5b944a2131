// Package handlers contains the HTTP layer: request parsing, response
// shaping, and nothing else. Permission checks and domain rules live in the
// services; everything here either binds input or maps a service result to
// JSON.
package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "github.com/bookhive/bookhive/src/internal/errors"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// cursorPage is the envelope every paginated listing returns.
type cursorPage struct {
	Data        any     `json:"data"`
	NextCursor  *string `json:"next_cursor"`
	HasNextPage bool    `json:"has_next_page"`
}

func newCursorPage(data any, nextCursor string) cursorPage {
	return cursorPage{
		Data:        data,
		NextCursor:  nullableString(nextCursor),
		HasNextPage: nextCursor != "",
	}
}

// pathID parses a numeric path parameter, 400 on garbage.
func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.BadRequest("Invalid " + name)
	}
	return id, nil
}

// pageLimit reads the limit query parameter. Out-of-range values are client
// errors, not silently clamped.
func pageLimit(c echo.Context, def, max int) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > max {
		return 0, apperrors.BadRequest("Limit must be between 1 and " + strconv.Itoa(max))
	}
	return limit, nil
}

// sortOrder validates the sort_order query parameter against asc|desc.
func sortOrder(c echo.Context, def string) (string, error) {
	order := c.QueryParam("sort_order")
	if order == "" {
		return def, nil
	}
	if order != "asc" && order != "desc" {
		return "", apperrors.BadRequest("Sort order must be 'asc' or 'desc'")
	}
	return order, nil
}

// nullableString maps "" to JSON null. Cursor and filter fields follow the
// wire contract where absence reads as null, not empty string.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
