package core

import "context"

// Transactor runs fn as one atomic unit of work against the entity store.
// Repositories called with the ctx handed to fn take part in the same unit of work.
// Nested calls join the outer unit of work.
// If fn returns an error nothing fn wrote is kept.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
