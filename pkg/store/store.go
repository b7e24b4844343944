package store

import (
	"context"
	"errors"

	"bibliotech/pkg/domain"
)

// ErrNotFound is returned by UpdateBook when no row matches the book id.
var ErrNotFound = errors.New("record not found")

// Store defines persistence operations for users and books. Both the
// Postgres-backed store and the in-memory mock satisfy it, so callers
// never depend on the backing engine.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// books
	SaveBook(domain.Book) error
	ListBooks() ([]domain.Book, error)
	GetBook(id string) (domain.Book, bool, error)
	// UpdateBook replaces the mutable fields of a stored book. The stored
	// row remains the source of truth for ID, CreatedAt and OwnerUserID.
	UpdateBook(domain.Book) error
	// DeleteBook is idempotent: deleting an unknown id is a no-op.
	DeleteBook(id string) error

	// Ping reports whether the backing engine is reachable.
	Ping(ctx context.Context) error
}
