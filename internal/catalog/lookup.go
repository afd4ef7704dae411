package catalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("catalog entry not found")

// Lookup resolves catalog records by name. Implementations return ErrNotFound
// when the record does not exist.
type Lookup interface {
	Store(ctx context.Context, name string) (*Store, error)
	Branch(ctx context.Context, store, name string) (*Branch, error)
	Product(ctx context.Context, store, branch, name string) (*Product, error)
	Class(ctx context.Context, name string) (*Class, error)
	VendorStore(ctx context.Context, vendor, name string) (*Store, error)
	VendorClass(ctx context.Context, vendor, name string) (*Class, error)
}
