package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bibliotech/pkg/domain"
	"bibliotech/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	Storage     string
	DatabaseURL string
	Store       store.Store
}

// App is the core application service wiring storage and domain logic.
type App struct {
	store    store.Store
	inMemory bool
}

// New constructs the application around the configured storage engine.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	inMemory := false
	if dataStore == nil {
		switch cfg.Storage {
		case "postgres":
			if cfg.DatabaseURL == "" {
				return nil, fmt.Errorf("database URL required")
			}
			var err error
			dataStore, err = store.NewGormStore(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("init postgres store: %w", err)
			}
		default:
			dataStore = store.NewMemoryStore()
			inMemory = true
		}
	} else {
		_, inMemory = dataStore.(*store.MemoryStore)
	}
	return &App{store: dataStore, inMemory: inMemory}, nil
}

// Health reports storage readiness for the health endpoint. The probe is
// bounded so a stuck database cannot hang the caller.
func (a *App) Health(ctx context.Context) (database string) {
	if a.inMemory {
		return "in-memory"
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := a.store.Ping(pingCtx); err != nil {
		return "unreachable"
	}
	return "connected"
}

// Login validates credentials and returns the matching account.
func (a *App) Login(email, password string) (domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, ErrEmailAndPasswordRequired
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || user.Password != password {
		return domain.User{}, ErrInvalidCredentials
	}
	user.Password = ""
	return user, nil
}

// Register creates a new account. A missing id is assigned server-side and
// a missing username defaults to the email local part.
func (a *App) Register(candidate domain.User) (domain.User, error) {
	candidate.Email = strings.TrimSpace(strings.ToLower(candidate.Email))
	if candidate.Email == "" || candidate.Password == "" {
		return domain.User{}, ErrEmailAndPasswordRequired
	}
	exists, err := a.store.HasUserEmail(candidate.Email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	if strings.TrimSpace(candidate.ID) == "" {
		candidate.ID = uuid.NewString()
	}
	candidate.Username = candidate.UsernameOrDefault()
	if err := a.store.SaveUser(candidate); err != nil {
		// Lost the race against a concurrent registration for the same email.
		if store.IsUniqueViolation(err) {
			return domain.User{}, ErrEmailAlreadyExists
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	candidate.Password = ""
	return candidate, nil
}

// ListBooks returns the full record set.
func (a *App) ListBooks() ([]domain.Book, error) {
	return a.store.ListBooks()
}

// CreateBook validates and persists a new record. ID and CreatedAt are
// assigned here when the client did not supply them.
func (a *App) CreateBook(book domain.Book) (domain.Book, error) {
	if err := validateBook(book); err != nil {
		return domain.Book{}, err
	}
	if strings.TrimSpace(book.OwnerUserID) == "" {
		return domain.Book{}, ErrOwnerRequired
	}
	if strings.TrimSpace(book.ID) == "" {
		book.ID = uuid.NewString()
	}
	if book.CreatedAt == 0 {
		book.CreatedAt = time.Now().UnixMilli()
	}
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// GetBook fetches a single record by id.
func (a *App) GetBook(id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// UpdateBook replaces the mutable fields of an existing record. The store
// keeps id, createdAt and ownerUserId from the stored row regardless of
// the payload.
func (a *App) UpdateBook(book domain.Book) error {
	if err := validateBook(book); err != nil {
		return err
	}
	err := a.store.UpdateBook(book)
	if errors.Is(err, store.ErrNotFound) {
		return ErrBookNotFound
	}
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// DeleteBook removes a record. Deleting an unknown id succeeds.
func (a *App) DeleteBook(id string) error {
	if err := a.store.DeleteBook(id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

func validateBook(book domain.Book) error {
	if strings.TrimSpace(book.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(book.Author) == "" {
		return ErrAuthorRequired
	}
	if _, ok := domain.ParseBookStatus(string(book.Status)); !ok {
		return ErrInvalidStatus
	}
	return nil
}
