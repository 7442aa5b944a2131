package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bookhive/bookhive/src/internal/auth"
	"github.com/bookhive/bookhive/src/internal/database"
	"github.com/bookhive/bookhive/src/internal/database/models"
	apperrors "github.com/bookhive/bookhive/src/internal/errors"
)

func setupServicesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	// Every pool connection to :memory: gets its own database; force a
	// single connection so all queries see the seeded rows.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.MigrateTest(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email, roleName string) *models.User {
	t.Helper()

	var role models.Role
	require.NoError(t, db.Where("name = ?", roleName).First(&role).Error)

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	user := &models.User{
		Email:          email,
		Name:           "Test " + roleName,
		HashedPassword: hash,
		RoleID:         role.ID,
		IsActive:       true,
	}
	require.NoError(t, db.Create(user).Error)
	user.Role = &role
	return user
}

func seedBook(t *testing.T, db *gorm.DB, title, author, genre, isbn string) models.Book {
	t.Helper()

	book := models.Book{
		Title:         title,
		Author:        author,
		Genre:         genre,
		ISBN:          isbn,
		Description:   title + " by " + author,
		PublishedDate: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&book).Error)
	return book
}

// requireAppError asserts err carries the given HTTP status and client
// message.
func requireAppError(t *testing.T, err error, status int, message string) {
	t.Helper()

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, status, appErr.Status)
	require.Equal(t, message, appErr.Message)
}
