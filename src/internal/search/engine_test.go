package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bookhive/bookhive/src/internal/database"
	"github.com/bookhive/bookhive/src/internal/database/models"
)

func setupSearchTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	// Every pool connection to :memory: gets its own database; force a
	// single connection so concurrent reads see the seeded rows.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.MigrateTest(db))
	return db
}

func newTestEngine(db *gorm.DB) *Engine {
	return NewEngine(db, Config{FTSWeight: 0.7, TrigramWeight: 0.3, TrigramFloor: 0.2}, zap.NewNop())
}

func mustCreate(t *testing.T, db *gorm.DB, book models.Book) models.Book {
	t.Helper()
	require.NoError(t, db.Create(&book).Error)
	return book
}

func collectTitles(page *Page) []string {
	titles := make([]string, 0, len(page.Books))
	for _, b := range page.Books {
		titles = append(titles, b.Title)
	}
	return titles
}

func TestEngineList(t *testing.T) {
	ctx := context.Background()

	t.Run("KeysetWalkIsCompleteAndOrdered", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)

		base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
		var want []int64
		for i := 0; i < 25; i++ {
			b := mustCreate(t, db, models.Book{
				Title:     fmt.Sprintf("Book %02d", i),
				ISBN:      fmt.Sprintf("isbn-%03d", i),
				Author:    "Some Author",
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			})
			want = append(want, b.ID)
		}

		walk := func(order string) []int64 {
			var got []int64
			cursor := ""
			pages := 0
			for {
				pages++
				require.LessOrEqual(t, pages, 4, "pagination did not terminate")
				page, err := eng.List(ctx, ListParams{Limit: 10, Cursor: cursor, SortOrder: order})
				require.NoError(t, err)
				for _, b := range page.Books {
					got = append(got, b.ID)
				}
				if page.NextCursor == "" {
					break
				}
				cursor = page.NextCursor
			}
			assert.Equal(t, 3, pages)
			return got
		}

		assert.Equal(t, want, walk("asc"))

		reversed := make([]int64, len(want))
		for i, id := range want {
			reversed[len(want)-1-i] = id
		}
		assert.Equal(t, reversed, walk("desc"))
	})

	t.Run("IdenticalTimestampsBreakTiesByID", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)

		stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		var want []int64
		for i := 0; i < 3; i++ {
			b := mustCreate(t, db, models.Book{
				Title:     fmt.Sprintf("Twin %d", i),
				ISBN:      fmt.Sprintf("twin-%d", i),
				Author:    "Some Author",
				CreatedAt: stamp,
			})
			want = append(want, b.ID)
		}

		var got []int64
		cursor := ""
		for {
			page, err := eng.List(ctx, ListParams{Limit: 1, Cursor: cursor, SortOrder: "asc"})
			require.NoError(t, err)
			for _, b := range page.Books {
				got = append(got, b.ID)
			}
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
		assert.Equal(t, want, got)
	})

	t.Run("KeywordVariantsMatch", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)

		mustCreate(t, db, models.Book{
			Title:  "Mastering Databases",
			ISBN:   "isbn-900",
			Author: "Dana Rivers",
		})
		mustCreate(t, db, models.Book{
			Title:       "Python Basics",
			Description: "programming walkthrough",
			ISBN:        "isbn-901",
			Author:      "Lee Chan",
		})

		// "db" expands to database/databases; "master" matches Mastering
		// as a substring. Both keywords must land on the same row.
		page, err := eng.List(ctx, ListParams{
			Query:  "master db",
			Fields: searchFields,
			Limit:  10,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Mastering Databases"}, collectTitles(page))
	})

	t.Run("EveryKeywordMustMatch", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)

		mustCreate(t, db, models.Book{
			Title:  "Ocean Mysteries",
			ISBN:   "isbn-910",
			Author: "Dana Rivers",
		})
		mustCreate(t, db, models.Book{
			Title:       "Python Basics",
			Description: "programming walkthrough",
			ISBN:        "isbn-911",
			Author:      "Lee Chan",
		})

		page, err := eng.List(ctx, ListParams{
			Query:  "ocean python",
			Fields: searchFields,
			Limit:  10,
		})
		require.NoError(t, err)
		assert.Empty(t, page.Books)
	})

	t.Run("FiltersApply", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)

		mustCreate(t, db, models.Book{
			Title:         "Deep Water",
			ISBN:          "isbn-920",
			Author:        "Dana Rivers",
			Genre:         "Science Fiction",
			PublishedDate: time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC),
		})
		mustCreate(t, db, models.Book{
			Title:         "Dry Land",
			ISBN:          "isbn-921",
			Author:        "Lee Chan",
			Genre:         "History",
			PublishedDate: time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC),
		})

		page, err := eng.List(ctx, ListParams{Filters: Filters{Author: "rivers"}, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Deep Water"}, collectTitles(page))

		page, err = eng.List(ctx, ListParams{Filters: Filters{Genre: "fiction"}, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Deep Water"}, collectTitles(page))

		page, err = eng.List(ctx, ListParams{Filters: Filters{Year: 2019}, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Dry Land"}, collectTitles(page))

		page, err = eng.List(ctx, ListParams{Filters: Filters{Author: "rivers", Year: 2019}, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Books)
	})

	t.Run("OffsetCursorRejected", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)

		_, err := eng.List(ctx, ListParams{Limit: 10, Cursor: EncodeOffsetCursor(10)})
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})
}

func TestEngineSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("NonPostgresGoesToPatternTier", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)

		mustCreate(t, db, models.Book{
			Title:  "Mastering Databases",
			ISBN:   "isbn-930",
			Author: "Dana Rivers",
		})

		page, err := eng.Search(ctx, SearchParams{Query: "master db", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Mastering Databases"}, collectTitles(page))
	})

	t.Run("FallbackPaginatesWithCompoundCursor", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)

		base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
		for i := 0; i < 3; i++ {
			mustCreate(t, db, models.Book{
				Title:     fmt.Sprintf("Ocean Volume %d", i),
				ISBN:      fmt.Sprintf("isbn-94%d", i),
				Author:    "Dana Rivers",
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			})
		}

		page, err := eng.Search(ctx, SearchParams{Query: "ocean", Limit: 2, SortOrder: "desc"})
		require.NoError(t, err)
		require.Len(t, page.Books, 2)
		require.NotEmpty(t, page.NextCursor)
		_, _, err = DecodeCompoundCursor(page.NextCursor)
		assert.NoError(t, err)

		page, err = eng.Search(ctx, SearchParams{Query: "ocean", Limit: 2, Cursor: page.NextCursor, SortOrder: "desc"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Ocean Volume 0"}, collectTitles(page))
		assert.Empty(t, page.NextCursor)
	})

	t.Run("EmptyQueryListsWithFilters", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)

		mustCreate(t, db, models.Book{Title: "Deep Water", ISBN: "isbn-950", Author: "Dana Rivers"})
		mustCreate(t, db, models.Book{Title: "Dry Land", ISBN: "isbn-951", Author: "Lee Chan"})

		page, err := eng.Search(ctx, SearchParams{Filters: Filters{Author: "chan"}, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Dry Land"}, collectTitles(page))
	})
}

func TestEngineSimpleSearch(t *testing.T) {
	ctx := context.Background()

	seedTrio := func(t *testing.T, db *gorm.DB) {
		base := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
		mustCreate(t, db, models.Book{
			Title:     "Ocean Mysteries",
			ISBN:      "isbn-960",
			Author:    "Dana Rivers",
			Genre:     "Adventure",
			CreatedAt: base,
		})
		mustCreate(t, db, models.Book{
			Title:     "Space Odyssey",
			ISBN:      "isbn-961",
			Author:    "Lee Chan",
			Genre:     "Sci-Fi",
			CreatedAt: base.Add(time.Second),
		})
		mustCreate(t, db, models.Book{
			Title:     "Cooking Basics",
			ISBN:      "isbn-962",
			Author:    "Ana Torres",
			Genre:     "Reference",
			CreatedAt: base.Add(2 * time.Second),
		})
	}

	t.Run("AnyKeywordMayMatch", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)
		seedTrio(t, db)

		page, err := eng.SimpleSearch(ctx, SearchParams{Query: "ocean space", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Space Odyssey", "Ocean Mysteries"}, collectTitles(page))
	})

	t.Run("StopWordsDropped", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)
		seedTrio(t, db)

		page, err := eng.SimpleSearch(ctx, SearchParams{Query: "find my ocean", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Ocean Mysteries"}, collectTitles(page))
	})

	t.Run("NoUsableKeywordsListsAll", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)
		seedTrio(t, db)

		page, err := eng.SimpleSearch(ctx, SearchParams{Query: "find me a", Limit: 10})
		require.NoError(t, err)
		assert.Len(t, page.Books, 3)
	})

	t.Run("FiltersRestrictKeywordHits", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)
		seedTrio(t, db)

		page, err := eng.SimpleSearch(ctx, SearchParams{
			Query:   "ocean space",
			Filters: Filters{Genre: "Sci-Fi"},
			Limit:   10,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Space Odyssey"}, collectTitles(page))
	})

	t.Run("OffsetWalk", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)
		seedTrio(t, db)

		var got []string
		cursor := ""
		for {
			page, err := eng.SimpleSearch(ctx, SearchParams{Query: "basics odyssey mysteries", Limit: 1, Cursor: cursor})
			require.NoError(t, err)
			for _, b := range page.Books {
				got = append(got, b.Title)
			}
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
		assert.Equal(t, []string{"Cooking Basics", "Space Odyssey", "Ocean Mysteries"}, got)
	})

	t.Run("CompoundCursorReadsAsOffsetZero", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)
		seedTrio(t, db)

		cursor := EncodeCompoundCursor(time.Now().UTC(), 5)
		page, err := eng.SimpleSearch(ctx, SearchParams{Query: "ocean", Limit: 10, Cursor: cursor})
		require.NoError(t, err)
		assert.Equal(t, []string{"Ocean Mysteries"}, collectTitles(page))
	})

	t.Run("MalformedCursorRejected", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)

		_, err := eng.SimpleSearch(ctx, SearchParams{Query: "ocean", Limit: 10, Cursor: "!!!"})
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})
}

func TestEngineExecutePredicate(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, db *gorm.DB) {
		base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
		mustCreate(t, db, models.Book{
			Title:     "Ocean Mysteries",
			ISBN:      "isbn-970",
			Author:    "Dana Rivers",
			Genre:     "Adventure",
			CreatedAt: base,
		})
		mustCreate(t, db, models.Book{
			Title:     "Ocean Engineering",
			ISBN:      "isbn-971",
			Author:    "Lee Chan",
			Genre:     "Reference",
			CreatedAt: base.Add(time.Second),
		})
		mustCreate(t, db, models.Book{
			Title:     "Desert Tales",
			ISBN:      "isbn-972",
			Author:    "Ana Torres",
			Genre:     "Fiction",
			CreatedAt: base.Add(2 * time.Second),
		})
	}

	t.Run("RewritesILIKEOffPostgres", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)
		seed(t, db)

		page, err := eng.ExecutePredicate(ctx, "title ILIKE '%ocean%'", 10, "", "desc")
		require.NoError(t, err)
		assert.Equal(t, []string{"Ocean Engineering", "Ocean Mysteries"}, collectTitles(page))
	})

	t.Run("PaginatesByOffset", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)
		seed(t, db)

		page, err := eng.ExecutePredicate(ctx, "title ILIKE '%ocean%'", 1, "", "asc")
		require.NoError(t, err)
		assert.Equal(t, []string{"Ocean Mysteries"}, collectTitles(page))
		require.NotEmpty(t, page.NextCursor)

		page, err = eng.ExecutePredicate(ctx, "title ILIKE '%ocean%'", 1, page.NextCursor, "asc")
		require.NoError(t, err)
		assert.Equal(t, []string{"Ocean Engineering"}, collectTitles(page))
		assert.Empty(t, page.NextCursor)
	})

	t.Run("GroupedPredicate", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)
		seed(t, db)

		clause := "(title ILIKE '%ocean%' OR title ILIKE '%desert%') AND genre = 'Fiction'"
		page, err := eng.ExecutePredicate(ctx, clause, 10, "", "desc")
		require.NoError(t, err)
		assert.Equal(t, []string{"Desert Tales"}, collectTitles(page))
	})

	t.Run("MalformedCursorRejected", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)

		_, err := eng.ExecutePredicate(ctx, "title LIKE '%x%'", 10, "not-base64", "desc")
		assert.ErrorIs(t, err, ErrInvalidCursor)
	})

	t.Run("DialectErrorsSurface", func(t *testing.T) {
		db := setupSearchTestDB(t)
		eng := newTestEngine(db)
		seed(t, db)

		// EXTRACT does not exist on sqlite; the caller treats the error as
		// a signal to fall back to filter extraction.
		_, err := eng.ExecutePredicate(ctx, "EXTRACT(YEAR FROM published_date) = 2020", 10, "", "desc")
		assert.Error(t, err)
	})
}
