package editor

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"bibliotech/pkg/domain"
)

// DefaultMaxImageBytes caps inlined cover attachments at 5 MB.
const DefaultMaxImageBytes = 5 * 1024 * 1024

var (
	ErrTitleRequired  = errors.New("title required")
	ErrAuthorRequired = errors.New("author required")
	ErrImageTooLarge  = errors.New("image exceeds the maximum size")
	ErrNoDraft        = errors.New("no draft in progress")
)

// Draft is the transient working copy of one create-or-edit operation.
type Draft struct {
	Title       string
	Author      string
	Description string
	Status      domain.BookStatus
	CoverImage  string

	editingID string // "" while creating
	createdAt int64  // preserved verbatim when editing
	ownerID   string
}

// Editor manages one edit session at a time. Opening a new draft discards
// any unsaved working state (last-writer-wins at the UI level).
type Editor struct {
	draft         *Draft
	maxImageBytes int64
	defaultStatus domain.BookStatus
}

// New constructs an editor with the default image cap and status.
func New() *Editor {
	return &Editor{
		maxImageBytes: DefaultMaxImageBytes,
		defaultStatus: domain.StatusReading,
	}
}

// SetMaxImageBytes overrides the attachment cap, mainly for tests.
func (e *Editor) SetMaxImageBytes(n int64) {
	if n > 0 {
		e.maxImageBytes = n
	}
}

// Begin opens a fresh create draft, discarding any pending one.
func (e *Editor) Begin() *Draft {
	e.draft = &Draft{Status: e.defaultStatus}
	return e.draft
}

// BeginEdit opens a draft pre-filled from an existing record, discarding
// any pending one. The record's id and createdAt are carried along and
// survive Submit untouched.
func (e *Editor) BeginEdit(book domain.Book) *Draft {
	e.draft = &Draft{
		Title:       book.Title,
		Author:      book.Author,
		Description: book.Description,
		Status:      book.Status,
		CoverImage:  book.CoverImage,
		editingID:   book.ID,
		createdAt:   book.CreatedAt,
		ownerID:     book.OwnerUserID,
	}
	return e.draft
}

// Draft returns the in-progress draft, or nil when none is open.
func (e *Editor) Draft() *Draft {
	return e.draft
}

// AttachImage inlines raw image bytes as a base64 data URL, so the record
// stays a self-contained JSON payload across the network boundary.
// Oversized payloads fail the attachment only; the draft survives.
func (e *Editor) AttachImage(data []byte) error {
	if e.draft == nil {
		return ErrNoDraft
	}
	if int64(len(data)) > e.maxImageBytes {
		return fmt.Errorf("%w (%d bytes, limit %d)", ErrImageTooLarge, len(data), e.maxImageBytes)
	}
	mimeType := http.DetectContentType(data)
	e.draft.CoverImage = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return nil
}

// AttachImageFile reads a local image file and inlines it.
func (e *Editor) AttachImageFile(path string) error {
	if e.draft == nil {
		return ErrNoDraft
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	// Checked before reading so an oversized file is never loaded.
	if info.Size() > e.maxImageBytes {
		return fmt.Errorf("%w (%d bytes, limit %d)", ErrImageTooLarge, info.Size(), e.maxImageBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	return e.AttachImage(data)
}

// Submit finalizes the draft into a record ready for the store client and
// closes the session. Creating assigns a fresh id, the current timestamp,
// the default status when unset and a deterministic placeholder cover.
// Editing preserves id, createdAt and owner verbatim.
func (e *Editor) Submit(ownerID string) (domain.Book, error) {
	if e.draft == nil {
		return domain.Book{}, ErrNoDraft
	}
	d := e.draft
	if strings.TrimSpace(d.Title) == "" {
		return domain.Book{}, ErrTitleRequired
	}
	if strings.TrimSpace(d.Author) == "" {
		return domain.Book{}, ErrAuthorRequired
	}

	book := domain.Book{
		Title:       d.Title,
		Author:      d.Author,
		Description: d.Description,
		Status:      d.Status,
		CoverImage:  d.CoverImage,
	}
	if book.Status == "" {
		book.Status = e.defaultStatus
	}
	if book.CoverImage == "" {
		book.CoverImage = PlaceholderCover(d.Title)
	}

	if d.editingID != "" {
		book.ID = d.editingID
		book.CreatedAt = d.createdAt
		book.OwnerUserID = d.ownerID
	} else {
		book.ID = uuid.NewString()
		book.CreatedAt = time.Now().UnixMilli()
		book.OwnerUserID = ownerID
	}

	e.draft = nil
	return book, nil
}

// Discard drops the in-progress draft, if any.
func (e *Editor) Discard() {
	e.draft = nil
}

// PlaceholderCover derives a stable placeholder image URL from the title.
func PlaceholderCover(title string) string {
	return "https://picsum.photos/seed/" + url.PathEscape(title) + "/400/600"
}
