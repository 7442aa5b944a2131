package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookhive/bookhive/src/internal/database/models"
)

func TestStatsService(t *testing.T) {
	ctx := context.Background()

	t.Run("StaffOnly", func(t *testing.T) {
		db := setupServicesTestDB(t)
		svc := NewStatsService(db)
		member := seedUser(t, db, "member@example.com", models.RoleMember)

		_, err := svc.Overview(ctx, member)
		requireAppError(t, err, http.StatusForbidden, "Permission denied")
	})

	t.Run("EmptyDatabase", func(t *testing.T) {
		db := setupServicesTestDB(t)
		svc := NewStatsService(db)
		librarian := seedUser(t, db, "lib@example.com", models.RoleLibrarian)

		stats, err := svc.Overview(ctx, librarian)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.TotalUsers)
		assert.Zero(t, stats.TotalBooks)
		assert.Zero(t, stats.TotalBorrowings)
		assert.Zero(t, stats.ActiveBorrowings)
		assert.Zero(t, stats.TotalReviews)
		assert.Zero(t, stats.AverageRating)
	})

	t.Run("CountsAndRoundedAverage", func(t *testing.T) {
		db := setupServicesTestDB(t)
		svc := NewStatsService(db)
		admin := seedUser(t, db, "admin@example.com", models.RoleAdmin)
		alice := seedUser(t, db, "alice@example.com", models.RoleMember)
		bob := seedUser(t, db, "bob@example.com", models.RoleMember)

		b1 := seedBook(t, db, "First", "A", "Fiction", "isbn-1")
		b2 := seedBook(t, db, "Second", "B", "Fiction", "isbn-2")

		now := time.Now().UTC()
		past := now.Add(-72 * time.Hour)
		seedLoan(t, db, alice.ID, b1.ID, past, past.Add(14*24*time.Hour), &now)
		seedLoan(t, db, bob.ID, b2.ID, now, now.Add(14*24*time.Hour), nil)

		for i, r := range []struct {
			userID int64
			rating int
		}{{alice.ID, 3}, {bob.ID, 4}, {admin.ID, 4}} {
			review := models.Review{UserID: r.userID, BookID: b1.ID, Rating: r.rating, Text: "t"}
			review.CreatedAt = now.Add(time.Duration(i) * time.Second)
			require.NoError(t, db.Create(&review).Error)
		}

		stats, err := svc.Overview(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalUsers)
		assert.Equal(t, int64(2), stats.TotalBooks)
		assert.Equal(t, int64(2), stats.TotalBorrowings)
		assert.Equal(t, int64(1), stats.ActiveBorrowings)
		assert.Equal(t, int64(3), stats.TotalReviews)
		assert.InDelta(t, 3.67, stats.AverageRating, 0.001)
	})
}
