package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type op uint8

const (
	opEq op = iota
	opNeq
	opLike
	opGte
	opLte
	opLt
	opIn
)

type filter struct {
	column string
	op     op
	value  any
}

type order struct {
	column string
	desc   bool
}

// Query is an immutable row filter. Every builder method returns a copy,
// so a base query can be shared and extended.
//
// Column names come from code, never from requests.
type Query struct {
	filters []filter
	orders  []order
	limit   int
}

// Where starts a query with an equality filter.
func Where(column string, value any) Query {
	return Query{}.Eq(column, value)
}

func (q Query) with(f filter) Query {
	out := q
	out.filters = append(append([]filter(nil), q.filters...), f)
	return out
}

func (q Query) Eq(column string, value any) Query  { return q.with(filter{column, opEq, value}) }
func (q Query) Neq(column string, value any) Query { return q.with(filter{column, opNeq, value}) }
func (q Query) Gte(column string, value any) Query { return q.with(filter{column, opGte, value}) }
func (q Query) Lte(column string, value any) Query { return q.with(filter{column, opLte, value}) }

// Lt compares two values; value may be another column via gorm.Expr.
func (q Query) Lt(column string, value any) Query { return q.with(filter{column, opLt, value}) }

// In matches any of values. An empty list matches nothing.
func (q Query) In(column string, values []string) Query {
	return q.with(filter{column, opIn, values})
}

// Like is a case-insensitive substring match.
func (q Query) Like(column, substr string) Query {
	return q.with(filter{column, opLike, "%" + strings.ToLower(substr) + "%"})
}

// Order appends a sort key.
func (q Query) Order(column string, desc bool) Query {
	out := q
	out.orders = append(append([]order(nil), q.orders...), order{column, desc})
	return out
}

func (q Query) Limit(n int) Query {
	out := q
	out.limit = n
	return out
}

// HasFilters reports whether q narrows the rows at all.
func (q Query) HasFilters() bool { return len(q.filters) > 0 }

func (q Query) apply(tx *gorm.DB) *gorm.DB {
	for _, f := range q.filters {
		switch f.op {
		case opEq:
			tx = tx.Where(fmt.Sprintf("%s = ?", f.column), f.value)
		case opNeq:
			tx = tx.Where(fmt.Sprintf("%s <> ?", f.column), f.value)
		case opLike:
			tx = tx.Where(fmt.Sprintf("LOWER(%s) LIKE ?", f.column), f.value)
		case opGte:
			tx = tx.Where(fmt.Sprintf("%s >= ?", f.column), f.value)
		case opLte:
			tx = tx.Where(fmt.Sprintf("%s <= ?", f.column), f.value)
		case opLt:
			tx = tx.Where(fmt.Sprintf("%s < ?", f.column), f.value)
		case opIn:
			if len(f.value.([]string)) == 0 {
				tx = tx.Where("1 = 0")
				continue
			}
			tx = tx.Where(fmt.Sprintf("%s IN ?", f.column), f.value)
		}
	}
	for _, o := range q.orders {
		dir := "ASC"
		if o.desc {
			dir = "DESC"
		}
		tx = tx.Order(fmt.Sprintf("%s %s", o.column, dir))
	}
	if q.limit > 0 {
		tx = tx.Limit(q.limit)
	}
	return tx
}
