package search

import "gorm.io/gorm"

// Filters are the structured constraints a listing applies in addition to
// keyword search. Zero values mean no constraint. Author and genre match
// as case-insensitive substrings, year matches the publication year
// exactly.
type Filters struct {
	Author string
	Genre  string
	Year   int
}

// Empty reports whether no constraint is set.
func (f Filters) Empty() bool {
	return f.Author == "" && f.Genre == "" && f.Year == 0
}

func (f Filters) apply(q *gorm.DB, like, year string) *gorm.DB {
	if f.Author != "" {
		q = q.Where("author "+like+" ?", "%"+f.Author+"%")
	}
	if f.Genre != "" {
		q = q.Where("genre "+like+" ?", "%"+f.Genre+"%")
	}
	if f.Year != 0 {
		q = q.Where(year+" = ?", f.Year)
	}
	return q
}

// likeOperator returns the case-insensitive pattern operator for the
// connected dialect. LIKE already ignores case on sqlite and mysql.
func likeOperator(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}

// yearExpr returns the SQL expression extracting the publication year.
func yearExpr(db *gorm.DB) string {
	if db.Dialector.Name() == "sqlite" {
		return "CAST(strftime('%Y', published_date) AS INTEGER)"
	}
	return "EXTRACT(YEAR FROM published_date)"
}
