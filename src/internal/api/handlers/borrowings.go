package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bookhive/bookhive/src/internal/auth"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/services"
)

// BorrowingHandler serves the loan lifecycle.
type BorrowingHandler struct {
	borrowings *services.BorrowingService
}

func NewBorrowingHandler(borrowings *services.BorrowingService) *BorrowingHandler {
	return &BorrowingHandler{borrowings: borrowings}
}

// BorrowRequest checks out a book. user_id defaults to the caller; setting
// it to someone else takes an admin.
type BorrowRequest struct {
	BookID int64 `json:"book_id" validate:"required"`
	UserID int64 `json:"user_id,omitempty"`
}

// Borrow creates a loan.
func (h *BorrowingHandler) Borrow(c echo.Context) error {
	var req BorrowRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	actor := auth.CurrentUser(c)
	userID := req.UserID
	if userID == 0 {
		userID = actor.ID
	}

	borrowing, err := h.borrowings.Borrow(c.Request().Context(), actor, userID, req.BookID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, borrowing)
}

// Return closes a loan. The borrower or staff.
func (h *BorrowingHandler) Return(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	borrowing, err := h.borrowings.Return(c.Request().Context(), auth.CurrentUser(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, borrowing)
}

// List pages loans. Without parameters it is the caller's own history;
// user_id, active=true and overdue=true are the staff views (user_id also
// accepts the caller's own ID).
func (h *BorrowingHandler) List(c echo.Context) error {
	limit, err := pageLimit(c, defaultPageSize, maxPageSize)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	actor := auth.CurrentUser(c)
	cursor := c.QueryParam("cursor")

	switch {
	case c.QueryParam("overdue") == "true":
		loans, next, err := h.borrowings.ListOverdue(ctx, actor, limit, cursor)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newCursorPage(loans, next))

	case c.QueryParam("active") == "true":
		loans, next, err := h.borrowings.ListActive(ctx, actor, limit, cursor)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newCursorPage(loans, next))

	default:
		userID := actor.ID
		if raw := c.QueryParam("user_id"); raw != "" {
			userID, err = strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				return apperrors.BadRequest("Invalid user_id")
			}
		}
		loans, next, err := h.borrowings.ListByUser(ctx, actor, userID, limit, cursor)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newCursorPage(loans, next))
	}
}

// Get returns one loan. The borrower or staff.
func (h *BorrowingHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	borrowing, err := h.borrowings.Get(c.Request().Context(), auth.CurrentUser(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, borrowing)
}
