package store

import (
	"context"
	"fmt"
	"sync"

	"bibliotech/pkg/domain"
)

// MemoryStore keeps records in-process. It backs tests and the
// "memory" storage mode, where the library resets on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	books  map[string]domain.Book
	orders []string // book ids in insertion order
	users  map[string]domain.User
	email  map[string]string // email -> user ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books: make(map[string]domain.Book),
		users: make(map[string]domain.User),
		email: make(map[string]string),
	}
}

// Ping always succeeds: the store lives in the same process.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// SaveUser registers a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.email[u.Email]; ok && id != u.ID {
		return fmt.Errorf("save user: duplicate key value %q", u.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if the email is registered.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// SaveBook stores a new book record. The owner must exist, mirroring the
// foreign-key constraint of the relational store.
func (m *MemoryStore) SaveBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[b.OwnerUserID]; !ok {
		return fmt.Errorf("save book: owner %q does not exist", b.OwnerUserID)
	}
	if _, exists := m.books[b.ID]; !exists {
		m.orders = append(m.orders, b.ID)
	}
	m.books[b.ID] = b
	return nil
}

// ListBooks returns books in insertion order.
func (m *MemoryStore) ListBooks() ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.orders))
	for _, id := range m.orders {
		if b, ok := m.books[id]; ok {
			res = append(res, b)
		}
	}
	return res, nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// UpdateBook replaces mutable fields. The stored record keeps its ID,
// CreatedAt and OwnerUserID whatever the payload says.
func (m *MemoryStore) UpdateBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.books[b.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Title = b.Title
	stored.Author = b.Author
	stored.Description = b.Description
	stored.Status = b.Status
	stored.CoverImage = b.CoverImage
	m.books[b.ID] = stored
	return nil
}

// DeleteBook removes a book. Deleting an unknown id is a no-op.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return nil
	}
	delete(m.books, id)
	filtered := m.orders[:0]
	for _, item := range m.orders {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.orders = filtered
	return nil
}

// DeleteUser removes a user and cascades to their books, matching the
// ON DELETE CASCADE behavior of the relational schema.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	delete(m.users, id)
	delete(m.email, u.Email)
	filtered := m.orders[:0]
	for _, bookID := range m.orders {
		if b, exists := m.books[bookID]; exists && b.OwnerUserID == id {
			delete(m.books, bookID)
			continue
		}
		filtered = append(filtered, bookID)
	}
	m.orders = filtered
	return nil
}
