package domain

import "strings"

// BookStatus is the stored machine key for a book's reading state.
// Display text is resolved only at render time via DisplayLabel, so
// locale strings never leak into comparison or sort logic.
type BookStatus string

const (
	StatusReading   BookStatus = "reading"
	StatusCompleted BookStatus = "completed"
	StatusWishlist  BookStatus = "wishlist"
)

// Statuses lists the closed set of valid book statuses.
func Statuses() []BookStatus {
	return []BookStatus{StatusReading, StatusCompleted, StatusWishlist}
}

// ParseBookStatus maps user input onto the closed status set.
func ParseBookStatus(s string) (BookStatus, bool) {
	switch BookStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusReading:
		return StatusReading, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusWishlist:
		return StatusWishlist, true
	default:
		return "", false
	}
}

// DisplayLabel returns the localized label shown in the UI.
func (s BookStatus) DisplayLabel() string {
	switch s {
	case StatusReading:
		return "In Lettura"
	case StatusCompleted:
		return "Completato"
	case StatusWishlist:
		return "Lista dei Desideri"
	default:
		return string(s)
	}
}

// Book is a single library record. CreatedAt is epoch milliseconds and,
// like ID and OwnerUserID, is assigned once at creation and never changed
// by updates. CoverImage holds either a remote URL or an inlined base64
// data URL so the record stays self-contained on the wire.
type Book struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Description string     `json:"description"`
	Status      BookStatus `json:"status"`
	OwnerUserID string     `json:"ownerUserId"`
	CoverImage  string     `json:"coverImage"`
	CreatedAt   int64      `json:"createdAt"`
}

// User is the account identity. The client only ever holds a read-only
// copy for the session; the password never appears in a response body.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"-"`
}

// UsernameOrDefault falls back to the email local part when no display
// name was chosen at registration.
func (u User) UsernameOrDefault() string {
	if strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}
