package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bookhive/bookhive/src/internal/auth"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/services"
)

// ReviewHandler serves book reviews and the per-book rating aggregate.
type ReviewHandler struct {
	reviews *services.ReviewService
}

func NewReviewHandler(reviews *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// CreateReviewRequest is the member review payload. The rating range is
// checked by the service so a zero reads as out-of-range, not as missing.
type CreateReviewRequest struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

// Create posts the caller's review of a book they have borrowed.
func (h *ReviewHandler) Create(c echo.Context) error {
	bookID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req CreateReviewRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}

	review, err := h.reviews.Create(c.Request().Context(), auth.CurrentUser(c), bookID, services.CreateReviewInput{
		Rating: req.Rating,
		Text:   req.Text,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, review)
}

// BookReviews pages one book's reviews.
func (h *ReviewHandler) BookReviews(c echo.Context) error {
	bookID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	limit, err := pageLimit(c, defaultPageSize, maxPageSize)
	if err != nil {
		return err
	}

	reviews, next, err := h.reviews.BookReviews(c.Request().Context(), bookID, limit, c.QueryParam("cursor"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCursorPage(reviews, next))
}

// BookRating returns a book's average rating, null when unreviewed.
func (h *ReviewHandler) BookRating(c echo.Context) error {
	bookID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	avg, err := h.reviews.AverageRating(c.Request().Context(), bookID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"book_id":        bookID,
		"average_rating": avg,
	})
}

// UserReviews pages one member's reviews. Their own, unless staff asks.
func (h *ReviewHandler) UserReviews(c echo.Context) error {
	userID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	actor := auth.CurrentUser(c)
	if userID != actor.ID && !actor.IsStaff() {
		return apperrors.Forbidden("Permission denied")
	}
	limit, err := pageLimit(c, defaultPageSize, maxPageSize)
	if err != nil {
		return err
	}

	reviews, next, err := h.reviews.UserReviews(c.Request().Context(), userID, limit, c.QueryParam("cursor"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCursorPage(reviews, next))
}

// UpdateReviewRequest modifies only the fields present in the payload.
type UpdateReviewRequest struct {
	Rating *int    `json:"rating"`
	Text   *string `json:"text"`
}

// Update edits a review. The reviewer or an admin.
func (h *ReviewHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateReviewRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}

	review, err := h.reviews.Update(c.Request().Context(), auth.CurrentUser(c), id, services.UpdateReviewInput{
		Rating: req.Rating,
		Text:   req.Text,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, review)
}

// Delete removes a review. The reviewer or an admin.
func (h *ReviewHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.reviews.Delete(c.Request().Context(), auth.CurrentUser(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
