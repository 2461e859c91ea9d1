package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/edublin-connect/internal/utils/pagination"
)

// Rows is row-level CRUD over one table.
type Rows[T any] interface {
	// Select returns every row matching q.
	Select(ctx context.Context, q Query) ([]T, error)
	// First returns the first row matching q or gorm.ErrRecordNotFound.
	First(ctx context.Context, q Query) (T, error)
	Insert(ctx context.Context, row *T) error
	// Update applies changes to the rows matching q. An empty q is refused.
	Update(ctx context.Context, q Query, changes map[string]any) (int64, error)
	Delete(ctx context.Context, q Query) (int64, error)
	Count(ctx context.Context, q Query) (int64, error)
	// Page lists rows newest first using an opaque cursor.
	Page(ctx context.Context, q Query, token string, limit int) ([]T, string, error)
}

// KeyFunc extracts the cursor position of a row.
type KeyFunc[T any] func(row T) (id string, createdAt time.Time)

// Table implements Rows over gorm.
type Table[T any] struct {
	db  *gorm.DB
	key KeyFunc[T]
}

// NewTable binds a table to a connection. key may be nil when Page is
// never used.
func NewTable[T any](database *gorm.DB, key KeyFunc[T]) *Table[T] {
	return &Table[T]{db: database, key: key}
}

func (t *Table[T]) model(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx).Model(new(T))
}

func (t *Table[T]) Select(ctx context.Context, q Query) ([]T, error) {
	var rows []T
	if err := q.apply(t.model(ctx)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *Table[T]) First(ctx context.Context, q Query) (T, error) {
	var row T
	err := q.Limit(1).apply(t.model(ctx)).Take(&row).Error
	return row, err
}

func (t *Table[T]) Insert(ctx context.Context, row *T) error {
	return t.db.WithContext(ctx).Create(row).Error
}

func (t *Table[T]) Update(ctx context.Context, q Query, changes map[string]any) (int64, error) {
	if !q.HasFilters() {
		return 0, gorm.ErrMissingWhereClause
	}
	res := q.apply(t.model(ctx)).Updates(changes)
	return res.RowsAffected, res.Error
}

func (t *Table[T]) Delete(ctx context.Context, q Query) (int64, error) {
	if !q.HasFilters() {
		return 0, gorm.ErrMissingWhereClause
	}
	res := q.apply(t.db.WithContext(ctx)).Delete(new(T))
	return res.RowsAffected, res.Error
}

func (t *Table[T]) Count(ctx context.Context, q Query) (int64, error) {
	var n int64
	err := q.apply(t.model(ctx)).Count(&n).Error
	return n, err
}

// Page returns up to limit rows ordered by created_at DESC, id DESC and the
// token of the next page, or "" when this is the last one.
//
// Any order or limit already on q is replaced.
func (t *Table[T]) Page(ctx context.Context, q Query, token string, limit int) ([]T, string, error) {
	if limit <= 0 {
		limit = 10
	}
	cursor, err := pagination.Decode(token)
	if err != nil {
		return nil, "", err
	}

	q.orders = nil
	tx := q.Order("created_at", true).Order("id", true).Limit(limit + 1).apply(t.model(ctx))

	// apply cursor
	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		tx = tx.Where("(created_at < ? OR (created_at = ? AND id < ?))", ts, ts, cursor.ID)
	}

	var rows []T
	if err := tx.Find(&rows).Error; err != nil {
		return nil, "", err
	}

	// pagination: build next cursor if needed
	var next string
	if len(rows) > limit {
		if t.key != nil {
			id, at := t.key(rows[limit-1])
			next, _ = pagination.Encode(pagination.Cursor{ID: id, CreatedUnix: at.UnixMilli()})
		}
		rows = rows[:limit]
	}
	return rows, next, nil
}
