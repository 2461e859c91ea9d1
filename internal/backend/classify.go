package backend

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	svcErr "github.com/oggyb/edublin-connect/internal/errors"
	"github.com/oggyb/edublin-connect/internal/repository"
	"github.com/oggyb/edublin-connect/internal/utils/pagination"
)

// classify maps driver errors onto error kinds. The operation is left
// empty so the gateway can stamp its own name.
func classify(what string, err error) error {
	if err == nil {
		return nil
	}
	var e *svcErr.Error
	if errors.As(err, &e) {
		return err
	}

	wrapped := fmt.Errorf("%s: %w", what, err)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return svcErr.E(svcErr.KindNotFound, "", wrapped)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return svcErr.E(svcErr.KindAlreadyRegistered, "", wrapped)
	case errors.Is(err, gorm.ErrMissingWhereClause):
		return svcErr.E(svcErr.KindPermissionDenied, "", wrapped)
	case errors.Is(err, context.DeadlineExceeded):
		return svcErr.E(svcErr.KindTimeout, "", wrapped)
	default:
		return svcErr.E(svcErr.KindUnknown, "", wrapped)
	}
}

// rows decorates a table so its errors come out classified.
type rows[T any] struct {
	name  string
	inner repository.Rows[T]
}

func (r rows[T]) Select(ctx context.Context, q repository.Query) ([]T, error) {
	out, err := r.inner.Select(ctx, q)
	return out, classify(r.name+" select", err)
}

func (r rows[T]) First(ctx context.Context, q repository.Query) (T, error) {
	out, err := r.inner.First(ctx, q)
	return out, classify(r.name+" first", err)
}

func (r rows[T]) Insert(ctx context.Context, row *T) error {
	return classify(r.name+" insert", r.inner.Insert(ctx, row))
}

func (r rows[T]) Update(ctx context.Context, q repository.Query, changes map[string]any) (int64, error) {
	n, err := r.inner.Update(ctx, q, changes)
	return n, classify(r.name+" update", err)
}

func (r rows[T]) Delete(ctx context.Context, q repository.Query) (int64, error) {
	n, err := r.inner.Delete(ctx, q)
	return n, classify(r.name+" delete", err)
}

func (r rows[T]) Count(ctx context.Context, q repository.Query) (int64, error) {
	n, err := r.inner.Count(ctx, q)
	return n, classify(r.name+" count", err)
}

func (r rows[T]) Page(ctx context.Context, q repository.Query, token string, limit int) ([]T, string, error) {
	out, next, err := r.inner.Page(ctx, q, token, limit)
	if errors.Is(err, pagination.ErrInvalidToken) {
		return nil, "", svcErr.Validation("", err.Error())
	}
	return out, next, classify(r.name+" page", err)
}
