package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bibliotech/pkg/domain"
	"bibliotech/services/library/internal/libclient"
	"bibliotech/services/library/internal/session"
	"bibliotech/services/library/internal/view"
)

// Client is the record-store surface the controller depends on.
type Client interface {
	CheckHealth(ctx context.Context) libclient.Health
	ListBooks(ctx context.Context) []domain.Book
	CreateBook(ctx context.Context, book domain.Book) bool
	UpdateBook(ctx context.Context, book domain.Book) bool
	DeleteBook(ctx context.Context, id string) bool
}

// Library orchestrates the record-store client, the session and the list
// pipeline. The record set lives as an immutable snapshot between
// reloads: mutations never patch it locally, they trigger a full reload
// so the displayed state always matches server truth.
type Library struct {
	client         Client
	healthInterval time.Duration

	mu        sync.Mutex
	sess      *session.Session
	snapshot  []domain.Book
	loadGen   uint64 // generation of the newest issued reload
	health    libclient.Health
	probeGen  uint64
	probeSeen uint64

	reloads singleflight.Group
}

// Option adjusts construction.
type Option func(*Library)

// WithHealthInterval overrides the probe cadence (default 30s).
func WithHealthInterval(d time.Duration) Option {
	return func(l *Library) {
		if d > 0 {
			l.healthInterval = d
		}
	}
}

// New constructs a library controller around a record-store client.
func New(client Client, opts ...Option) *Library {
	l := &Library{
		client:         client,
		healthInterval: 30 * time.Second,
		snapshot:       []domain.Book{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetSession installs the session after login and triggers the initial
// load of the record set. A nil session (logout) clears the snapshot.
func (l *Library) SetSession(ctx context.Context, sess *session.Session) {
	l.mu.Lock()
	l.sess = sess
	if sess == nil {
		l.snapshot = []domain.Book{}
		// Bumping the generation outdates any in-flight load from the
		// old session, so its payload is dropped on arrival.
		l.loadGen++
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	l.InvalidateAndReload(ctx)
}

// Session returns the current session, nil when logged out.
func (l *Library) Session() *session.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sess
}

// Books returns the latest completed snapshot.
func (l *Library) Books() []domain.Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot
}

// View runs the list pipeline over the snapshot. The viewer id is filled
// from the session so the "mine" filter follows the logged-in account.
func (l *Library) View(p view.Params) []domain.Book {
	l.mu.Lock()
	books := l.snapshot
	p.ViewerID = l.sess.UserID()
	l.mu.Unlock()
	return view.Apply(books, p)
}

const reloadKey = "reload"

// reloadOutcome carries the generation a flight was issued under, so a
// caller can tell whether the flight it landed in observed its own
// invalidation.
type reloadOutcome struct {
	gen   uint64
	books []domain.Book
}

// InvalidateAndReload fetches the full record set and applies it, unless
// a newer reload has been issued meanwhile: a stale in-flight response
// resolving after a newer request is discarded, otherwise it could
// resurrect deleted records in the view. An invalidation never joins a
// request that was already in flight, since that request observed
// pre-mutation state.
func (l *Library) InvalidateAndReload(ctx context.Context) []domain.Book {
	l.mu.Lock()
	l.loadGen++
	gen := l.loadGen
	l.mu.Unlock()

	// Evict any request issued before this invalidation from the flight
	// group; joining it would apply pre-mutation state as newest.
	l.reloads.Forget(reloadKey)

	for {
		result, _, _ := l.reloads.Do(reloadKey, func() (any, error) {
			l.mu.Lock()
			issued := l.loadGen
			l.mu.Unlock()
			books := l.client.ListBooks(ctx)
			l.applySnapshot(issued, books)
			return reloadOutcome{gen: issued, books: books}, nil
		})
		outcome, ok := result.(reloadOutcome)
		if !ok || outcome.gen >= gen {
			break
		}
		// Landed in a flight older than this invalidation after all
		// (another caller's Forget raced ours); reissue.
		l.reloads.Forget(reloadKey)
	}
	return l.Books()
}

func (l *Library) applySnapshot(gen uint64, books []domain.Book) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen < l.loadGen {
		// A newer reload was issued while this response was in flight;
		// its payload may predate that reload's mutation.
		slog.Debug("discarding stale book list", "gen", gen, "newest", l.loadGen)
		return
	}
	l.snapshot = books
}

// AddBook persists a new record and reloads on success.
func (l *Library) AddBook(ctx context.Context, book domain.Book) bool {
	if !l.client.CreateBook(ctx, book) {
		return false
	}
	l.InvalidateAndReload(ctx)
	return true
}

// SaveBook updates an existing record and reloads on success.
func (l *Library) SaveBook(ctx context.Context, book domain.Book) bool {
	if !l.client.UpdateBook(ctx, book) {
		return false
	}
	l.InvalidateAndReload(ctx)
	return true
}

// RemoveBook deletes a record and reloads on success. Delete is terminal:
// there is no undo, the next snapshot simply no longer contains the id.
func (l *Library) RemoveBook(ctx context.Context, id string) bool {
	if !l.client.DeleteBook(ctx, id) {
		return false
	}
	l.InvalidateAndReload(ctx)
	return true
}

// Healthy reports the latest completed probe result.
func (l *Library) Healthy() libclient.Health {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.health
}

// ProbeHealth runs one health check and applies its result. Each probe
// carries its own generation: the newest issued probe wins, so a slow
// older probe cannot overwrite fresher status.
func (l *Library) ProbeHealth(ctx context.Context) libclient.Health {
	l.mu.Lock()
	l.probeGen++
	gen := l.probeGen
	l.mu.Unlock()

	h := l.client.CheckHealth(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen < l.probeSeen {
		return l.health
	}
	l.probeSeen = gen
	l.health = h
	return h
}

// RunHealthProbe probes immediately and then on a fixed interval until
// the context is canceled. The probe's own timeout lives inside the
// client, so a slow backend never stalls the ticker.
func (l *Library) RunHealthProbe(ctx context.Context) {
	l.ProbeHealth(ctx)
	ticker := time.NewTicker(l.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.ProbeHealth(ctx)
		}
	}
}
