package store

import (
	"strings"
)

// QueryBuilder rewrites queries written with ? placeholders for the active dialect.
type QueryBuilder struct {
	dialect Dialect
}

// NewQueryBuilder creates a QueryBuilder for the given dialect.
func NewQueryBuilder(dialect Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: dialect}
}

// Build replaces each ? with the dialect's positional placeholder.
//
//	sqlite:   SELECT ... FROM runs WHERE id = ? AND seed = ?
//	postgres: SELECT ... FROM runs WHERE id = $1 AND seed = $2
func (qb *QueryBuilder) Build(query string) string {
	if qb.dialect.Placeholder(1) == "?" || !strings.Contains(query, "?") {
		return query
	}

	parts := strings.Split(query, "?")
	var b strings.Builder
	b.Grow(len(query) + 2*len(parts))
	b.WriteString(parts[0])
	for i, part := range parts[1:] {
		b.WriteString(qb.dialect.Placeholder(i + 1))
		b.WriteString(part)
	}
	return b.String()
}
