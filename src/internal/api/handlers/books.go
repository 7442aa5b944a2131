package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bookhive/bookhive/src/internal/auth"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/search"
	"github.com/bookhive/bookhive/src/internal/services"
)

// BookHandler serves the catalog: listing, search and staff CRUD.
type BookHandler struct {
	books *services.BookService
}

func NewBookHandler(books *services.BookService) *BookHandler {
	return &BookHandler{books: books}
}

// List pages the catalog. With any of search/author/genre/published_year set
// it runs the ranked search cascade; otherwise it is a plain recency listing.
func (h *BookHandler) List(c echo.Context) error {
	limit, err := pageLimit(c, defaultPageSize, maxPageSize)
	if err != nil {
		return err
	}
	order, err := sortOrder(c, "desc")
	if err != nil {
		return err
	}

	filters := search.Filters{
		Author: c.QueryParam("author"),
		Genre:  c.QueryParam("genre"),
	}
	if raw := c.QueryParam("published_year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.BadRequest("Invalid published_year")
		}
		filters.Year = year
	}

	query := c.QueryParam("search")
	cursor := c.QueryParam("cursor")

	var page *search.Page
	if query != "" || !filters.Empty() {
		page, err = h.books.Search(c.Request().Context(), search.SearchParams{
			Query:     query,
			Filters:   filters,
			Limit:     limit,
			Cursor:    cursor,
			SortOrder: order,
		})
	} else {
		page, err = h.books.List(c.Request().Context(), search.ListParams{
			Limit:     limit,
			Cursor:    cursor,
			SortOrder: order,
		})
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newCursorPage(page.Books, page.NextCursor))
}

// Get returns one book.
func (h *BookHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	book, err := h.books.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, book)
}

// CreateBookRequest is the staff catalog-entry payload. published_date uses
// YYYY-MM-DD.
type CreateBookRequest struct {
	Title         string `json:"title" validate:"required"`
	Description   string `json:"description"`
	ISBN          string `json:"isbn" validate:"required"`
	Author        string `json:"author" validate:"required"`
	Genre         string `json:"genre"`
	PublishedDate string `json:"published_date" validate:"required"`
}

// Create adds a book to the catalog. Staff only.
func (h *BookHandler) Create(c echo.Context) error {
	var req CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	published, err := parseDate(req.PublishedDate)
	if err != nil {
		return err
	}

	book, err := h.books.Create(c.Request().Context(), auth.CurrentUser(c), services.CreateBookInput{
		Title:         req.Title,
		Description:   req.Description,
		ISBN:          req.ISBN,
		Author:        req.Author,
		Genre:         req.Genre,
		PublishedDate: published,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, book)
}

// UpdateBookRequest modifies only the fields present in the payload.
type UpdateBookRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	ISBN          *string `json:"isbn"`
	Author        *string `json:"author"`
	Genre         *string `json:"genre"`
	PublishedDate *string `json:"published_date"`
}

// Update edits a catalog entry. Staff only.
func (h *BookHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateBookRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}

	input := services.UpdateBookInput{
		Title:       req.Title,
		Description: req.Description,
		ISBN:        req.ISBN,
		Author:      req.Author,
		Genre:       req.Genre,
	}
	if req.PublishedDate != nil {
		published, err := parseDate(*req.PublishedDate)
		if err != nil {
			return err
		}
		input.PublishedDate = &published
	}

	book, err := h.books.Update(c.Request().Context(), auth.CurrentUser(c), id, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, book)
}

// Delete removes a book and its history. Staff only.
func (h *BookHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.books.Delete(c.Request().Context(), auth.CurrentUser(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperrors.BadRequest("Invalid published_date. Use YYYY-MM-DD")
	}
	return t, nil
}
