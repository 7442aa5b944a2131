package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/database/models"
	"github.com/bookhive/bookhive/src/internal/search"
)

func newTestBookService(t *testing.T) (*BookService, *gorm.DB) {
	t.Helper()
	db := setupServicesTestDB(t)
	engine := search.NewEngine(db, search.Config{FTSWeight: 0.7, TrigramWeight: 0.3, TrigramFloor: 0.2}, zap.NewNop())
	return NewBookService(db, engine, zap.NewNop()), db
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestBookService(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		svc, db := newTestBookService(t)
		librarian := seedUser(t, db, "lib@example.com", models.RoleLibrarian)

		book, err := svc.Create(ctx, librarian, CreateBookInput{
			Title:         "The Hobbit",
			Description:   "There and back again",
			ISBN:          "978-0-261-10295-4",
			Author:        "J.R.R. Tolkien",
			Genre:         "Fantasy",
			PublishedDate: time.Date(1937, 9, 21, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.NotZero(t, book.ID)

		got, err := svc.Get(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, "The Hobbit", got.Title)

		byISBN, err := svc.GetByISBN(ctx, "978-0-261-10295-4")
		require.NoError(t, err)
		assert.Equal(t, book.ID, byISBN.ID)
	})

	t.Run("MemberCannotCreate", func(t *testing.T) {
		svc, db := newTestBookService(t)
		member := seedUser(t, db, "member@example.com", models.RoleMember)

		_, err := svc.Create(ctx, member, CreateBookInput{Title: "Nope", ISBN: "1", Author: "A"})
		requireAppError(t, err, http.StatusForbidden, "Permission denied")
	})

	t.Run("DuplicateISBNRejected", func(t *testing.T) {
		svc, db := newTestBookService(t)
		admin := seedUser(t, db, "admin@example.com", models.RoleAdmin)
		seedBook(t, db, "First", "Author", "Fiction", "dup-isbn")

		_, err := svc.Create(ctx, admin, CreateBookInput{Title: "Second", ISBN: "dup-isbn", Author: "Other"})
		requireAppError(t, err, http.StatusBadRequest, "Book with this ISBN already exists")
	})

	t.Run("GetMissing", func(t *testing.T) {
		svc, _ := newTestBookService(t)

		_, err := svc.Get(ctx, 9999)
		requireAppError(t, err, http.StatusNotFound, "Book not found")

		_, err = svc.GetByISBN(ctx, "no-such-isbn")
		requireAppError(t, err, http.StatusNotFound, "Book not found")
	})

	t.Run("UpdateTouchesOnlySetFields", func(t *testing.T) {
		svc, db := newTestBookService(t)
		admin := seedUser(t, db, "admin@example.com", models.RoleAdmin)
		book := seedBook(t, db, "Dune", "Frank Herbert", "Sci-Fi", "isbn-dune")

		updated, err := svc.Update(ctx, admin, book.ID, UpdateBookInput{Title: strPtr("Dune Messiah")})
		require.NoError(t, err)
		assert.Equal(t, "Dune Messiah", updated.Title)
		assert.Equal(t, "Frank Herbert", updated.Author)
		assert.Equal(t, "isbn-dune", updated.ISBN)
	})

	t.Run("UpdateISBNConflict", func(t *testing.T) {
		svc, db := newTestBookService(t)
		admin := seedUser(t, db, "admin@example.com", models.RoleAdmin)
		seedBook(t, db, "First", "A", "Fiction", "isbn-1")
		second := seedBook(t, db, "Second", "B", "Fiction", "isbn-2")

		_, err := svc.Update(ctx, admin, second.ID, UpdateBookInput{ISBN: strPtr("isbn-1")})
		requireAppError(t, err, http.StatusBadRequest, "Book with this ISBN already exists")

		// Re-sending the current ISBN is not a conflict.
		_, err = svc.Update(ctx, admin, second.ID, UpdateBookInput{ISBN: strPtr("isbn-2")})
		require.NoError(t, err)
	})

	t.Run("MemberCannotMutate", func(t *testing.T) {
		svc, db := newTestBookService(t)
		member := seedUser(t, db, "member@example.com", models.RoleMember)
		book := seedBook(t, db, "Locked", "A", "Fiction", "isbn-locked")

		_, err := svc.Update(ctx, member, book.ID, UpdateBookInput{Title: strPtr("Hacked")})
		requireAppError(t, err, http.StatusForbidden, "Permission denied")

		err = svc.Delete(ctx, member, book.ID)
		requireAppError(t, err, http.StatusForbidden, "Permission denied")
	})

	t.Run("DeleteTwice", func(t *testing.T) {
		svc, db := newTestBookService(t)
		librarian := seedUser(t, db, "lib@example.com", models.RoleLibrarian)
		book := seedBook(t, db, "Gone", "A", "Fiction", "isbn-gone")

		require.NoError(t, svc.Delete(ctx, librarian, book.ID))

		err := svc.Delete(ctx, librarian, book.ID)
		requireAppError(t, err, http.StatusNotFound, "Book not found")

		_, err = svc.Get(ctx, book.ID)
		requireAppError(t, err, http.StatusNotFound, "Book not found")
	})

	t.Run("SearchFindsByKeyword", func(t *testing.T) {
		svc, db := newTestBookService(t)
		seedBook(t, db, "The Hobbit", "J.R.R. Tolkien", "Fantasy", "isbn-hobbit")
		seedBook(t, db, "Dune", "Frank Herbert", "Sci-Fi", "isbn-dune")

		page, err := svc.Search(ctx, search.SearchParams{Query: "hobbit", Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Books, 1)
		assert.Equal(t, "The Hobbit", page.Books[0].Title)
	})

	t.Run("ListHonorsFilters", func(t *testing.T) {
		svc, db := newTestBookService(t)
		seedBook(t, db, "The Hobbit", "J.R.R. Tolkien", "Fantasy", "isbn-hobbit")
		seedBook(t, db, "Dune", "Frank Herbert", "Sci-Fi", "isbn-dune")

		page, err := svc.List(ctx, search.ListParams{
			Filters: search.Filters{Genre: "Fantasy"},
			Limit:   10,
		})
		require.NoError(t, err)
		require.Len(t, page.Books, 1)
		assert.Equal(t, "The Hobbit", page.Books[0].Title)
	})

	t.Run("InvalidCursor", func(t *testing.T) {
		svc, db := newTestBookService(t)
		seedBook(t, db, "Any", "A", "Fiction", "isbn-any")

		_, err := svc.Search(ctx, search.SearchParams{Query: "any", Limit: 10, Cursor: "!!not-base64!!"})
		requireAppError(t, err, http.StatusBadRequest, "Invalid cursor format")
	})
}
