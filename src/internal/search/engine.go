package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/database/models"
)

// Config carries the ranking thresholds for the cascade.
type Config struct {
	// FTSWeight and TrigramWeight blend the two scores into combined_rank.
	FTSWeight     float64
	TrigramWeight float64
	// TrigramFloor is the minimum similarity for a trigram-only hit.
	TrigramFloor float64
}

// Page is one page of results. An empty NextCursor means the listing is
// exhausted.
type Page struct {
	Books      []models.Book
	NextCursor string
}

// ListParams control a keyset-paginated listing. Query, when set, is
// expanded into keyword variants that must all match across Fields.
type ListParams struct {
	Filters   Filters
	Query     string
	Fields    []string
	Limit     int
	Cursor    string
	SortOrder string
}

// SearchParams control the ranked cascade and its fallback tiers.
type SearchParams struct {
	Query     string
	Filters   Filters
	Limit     int
	Cursor    string
	SortOrder string
}

// Engine executes the search cascade against storage.
type Engine struct {
	db     *gorm.DB
	cfg    Config
	logger *zap.Logger
}

func NewEngine(db *gorm.DB, cfg Config, logger *zap.Logger) *Engine {
	return &Engine{db: db, cfg: cfg, logger: logger}
}

// searchFields are the columns the pattern-match fallback searches.
var searchFields = []string{"title", "description", "author", "genre", "isbn"}

// Search is the catalog search entry point. On PostgreSQL a query first
// goes through ranked full-text retrieval; when that yields nothing, or on
// other dialects, it degrades to the pattern-match listing with keyword
// variant expansion.
func (e *Engine) Search(ctx context.Context, p SearchParams) (*Page, error) {
	if p.Query != "" && e.isPostgres() {
		page, err := e.searchRanked(ctx, p)
		if err != nil {
			return nil, err
		}
		if len(page.Books) > 0 {
			e.logger.Info("ranked search hit",
				zap.String("query", p.Query),
				zap.Int("count", len(page.Books)))
			return page, nil
		}
		e.logger.Info("ranked search empty, falling back to pattern search",
			zap.String("query", p.Query))
	}

	return e.List(ctx, ListParams{
		Filters:   p.Filters,
		Query:     p.Query,
		Fields:    searchFields,
		Limit:     p.Limit,
		Cursor:    p.Cursor,
		SortOrder: p.SortOrder,
	})
}

// List pages books by (created_at, id) keyset. Every keyword from Query
// must match in some field under some variant; filters always apply.
func (e *Engine) List(ctx context.Context, p ListParams) (*Page, error) {
	like := likeOperator(e.db)
	q := e.db.WithContext(ctx).Model(&models.Book{})

	if p.Cursor != "" {
		createdAt, id, err := DecodeCompoundCursor(p.Cursor)
		if err != nil {
			return nil, err
		}
		if p.SortOrder == "asc" {
			q = q.Where("created_at > ? OR (created_at = ? AND id > ?)", createdAt, createdAt, id)
		} else {
			q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
		}
	}

	q = p.Filters.apply(q, like, yearExpr(e.db))

	if p.Query != "" && len(p.Fields) > 0 {
		for _, kw := range Normalize(p.Query) {
			conds := make([]string, 0, len(kw.Variants)*len(p.Fields))
			args := make([]any, 0, len(kw.Variants)*len(p.Fields))
			for _, variant := range kw.Variants {
				for _, field := range p.Fields {
					conds = append(conds, field+" "+like+" ?")
					args = append(args, "%"+variant+"%")
				}
			}
			q = q.Where("("+strings.Join(conds, " OR ")+")", args...)
		}
	}

	if p.SortOrder == "asc" {
		q = q.Order("created_at ASC, id ASC")
	} else {
		q = q.Order("created_at DESC, id DESC")
	}

	var books []models.Book
	if err := q.Limit(p.Limit + 1).Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	page := &Page{Books: books}
	if len(books) > p.Limit {
		page.Books = books[:p.Limit]
		last := page.Books[len(page.Books)-1]
		page.NextCursor = EncodeCompoundCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

type rankedBook struct {
	models.Book
	CombinedRank float64 `gorm:"column:combined_rank"`
}

const trigramExpr = "GREATEST(" +
	"similarity(lower(title), lower(?)), " +
	"similarity(lower(author), lower(?)), " +
	"similarity(lower(description), lower(?)), " +
	"similarity(lower(genre), lower(?)), " +
	"similarity(lower(isbn), lower(?)))"

// searchRanked blends ts_rank_cd over the search vector with the best
// trigram similarity across the text fields. Rows qualify when the vector
// matches the websearch query or any trigram similarity clears the floor.
func (e *Engine) searchRanked(ctx context.Context, p SearchParams) (*Page, error) {
	offset := 0
	if p.Cursor != "" {
		var err error
		if offset, err = DecodeOffsetCursor(p.Cursor); err != nil {
			return nil, err
		}
	}

	query := strings.TrimSpace(p.Query)

	var sb strings.Builder
	var args []any
	write := func(sql string, a ...any) {
		sb.WriteString(sql)
		args = append(args, a...)
	}

	write("SELECT *, (ts_rank_cd(search_vector, websearch_to_tsquery('english', ?)) * ?", query, e.cfg.FTSWeight)
	write(" + "+trigramExpr+" * ?", query, query, query, query, query, e.cfg.TrigramWeight)
	write(") AS combined_rank FROM books")
	write(" WHERE (search_vector @@ websearch_to_tsquery('english', ?)", query)
	write(" OR "+trigramExpr+" > ?)", query, query, query, query, query, e.cfg.TrigramFloor)
	if p.Filters.Author != "" {
		write(" AND author ILIKE ?", "%"+p.Filters.Author+"%")
	}
	if p.Filters.Genre != "" {
		write(" AND genre ILIKE ?", "%"+p.Filters.Genre+"%")
	}
	if p.Filters.Year != 0 {
		write(" AND EXTRACT(YEAR FROM published_date) = ?", p.Filters.Year)
	}
	write(" ORDER BY combined_rank DESC, created_at DESC LIMIT ? OFFSET ?", p.Limit+1, offset)

	var rows []rankedBook
	if err := e.db.WithContext(ctx).Raw(sb.String(), args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to execute ranked search: %w", err)
	}

	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}
	page := &Page{Books: make([]models.Book, 0, len(rows))}
	for _, row := range rows {
		page.Books = append(page.Books, row.Book)
	}
	if hasMore {
		page.NextCursor = EncodeOffsetCursor(offset + p.Limit)
	}
	return page, nil
}

// SimpleSearch is the extraction-fallback tier: plain keywords ORed across
// the text fields (any keyword may match), structured filters ANDed on
// top, offset pagination.
func (e *Engine) SimpleSearch(ctx context.Context, p SearchParams) (*Page, error) {
	offset := 0
	if p.Cursor != "" {
		var err error
		if offset, err = DecodeOffsetCursor(p.Cursor); err != nil {
			return nil, err
		}
	}

	like := likeOperator(e.db)
	q := e.db.WithContext(ctx).Model(&models.Book{})
	q = p.Filters.apply(q, like, yearExpr(e.db))

	if p.Query != "" {
		keywords := Keywords(p.Query)
		if len(keywords) > 0 {
			conds := make([]string, 0, len(keywords))
			args := make([]any, 0, len(keywords)*4)
			for _, kw := range keywords {
				conds = append(conds,
					"(title "+like+" ? OR description "+like+" ? OR author "+like+" ? OR genre "+like+" ?)")
				pattern := "%" + kw + "%"
				args = append(args, pattern, pattern, pattern, pattern)
			}
			q = q.Where(strings.Join(conds, " OR "), args...)
		}
	}

	if p.SortOrder == "asc" {
		q = q.Order("created_at ASC")
	} else {
		q = q.Order("created_at DESC")
	}

	var books []models.Book
	if err := q.Offset(offset).Limit(p.Limit + 1).Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to execute keyword search: %w", err)
	}

	return e.offsetPage(books, p.Limit, offset), nil
}

// ExecutePredicate runs a validated WHERE-clause fragment. ILIKE is
// rewritten to LIKE off PostgreSQL.
func (e *Engine) ExecutePredicate(ctx context.Context, whereClause string, limit int, cursor, sortOrder string) (*Page, error) {
	if !e.isPostgres() {
		whereClause = strings.ReplaceAll(whereClause, " ILIKE ", " LIKE ")
		whereClause = strings.ReplaceAll(whereClause, "ILIKE ", "LIKE ")
	}

	offset := 0
	if cursor != "" {
		var err error
		if offset, err = DecodeOffsetCursor(cursor); err != nil {
			return nil, err
		}
	}

	q := e.db.WithContext(ctx).Model(&models.Book{}).Where(whereClause)
	if sortOrder == "asc" {
		q = q.Order("created_at ASC")
	} else {
		q = q.Order("created_at DESC")
	}

	var books []models.Book
	if err := q.Offset(offset).Limit(limit + 1).Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to execute predicate search: %w", err)
	}

	return e.offsetPage(books, limit, offset), nil
}

func (e *Engine) offsetPage(books []models.Book, limit, offset int) *Page {
	page := &Page{Books: books}
	if len(books) > limit {
		page.Books = books[:limit]
		page.NextCursor = EncodeOffsetCursor(offset + limit)
	}
	return page
}

func (e *Engine) isPostgres() bool {
	return e.db.Dialector.Name() == "postgres"
}
