// Package repo defines a generic repository and its Neo4j implementation.
package repo

import "context"

// Repository lists and upserts entities of type T.
type Repository[T any] interface {
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Upsert(ctx context.Context, entity T) error
}

// ListOpts controls pagination, equality filtering and ordering for List.
// Limit <= 0 returns everything.
type ListOpts struct {
	Offset  int
	Limit   int
	Where   map[string]any
	OrderBy string
	Desc    bool
}
