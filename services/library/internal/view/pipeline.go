package view

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"bibliotech/pkg/domain"
)

// Ownership filter values.
type Ownership string

const (
	OwnershipAll  Ownership = "all"
	OwnershipMine Ownership = "mine"
)

// Sortable fields.
type SortField string

const (
	SortByTitle     SortField = "title"
	SortByAuthor    SortField = "author"
	SortByCreatedAt SortField = "createdAt"
)

// Sort directions.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// StatusAll disables the status filter.
const StatusAll = "all"

// Params are the view parameters feeding the pipeline. Every change to
// them, or to the record set, recomputes the displayed list.
type Params struct {
	Ownership Ownership
	ViewerID  string // session user id, compared against OwnerUserID for "mine"
	Status    string // StatusAll or a domain.BookStatus key
	Query     string
	SortField SortField
	SortOrder SortOrder
}

// DefaultParams is the initial view state: every record, newest first.
func DefaultParams() Params {
	return Params{
		Ownership: OwnershipAll,
		Status:    StatusAll,
		SortField: SortByCreatedAt,
		SortOrder: Descending,
	}
}

// Apply filters and orders the record set for display. It is pure: the
// input slice is never mutated and the output is a fresh subset of it.
func Apply(books []domain.Book, p Params) []domain.Book {
	result := make([]domain.Book, 0, len(books))
	query := strings.ToLower(strings.TrimSpace(p.Query))
	for _, book := range books {
		if !matchesOwnership(book, p) {
			continue
		}
		if !matchesStatus(book, p) {
			continue
		}
		if !matchesQuery(book, query) {
			continue
		}
		result = append(result, book)
	}

	cmp := comparator(p.SortField)
	desc := p.SortOrder == Descending
	// Stable sort with a negated comparator, not a reversed list, so
	// equal keys keep their input order in both directions.
	sort.SliceStable(result, func(i, j int) bool {
		c := cmp(result[i], result[j])
		if desc {
			c = -c
		}
		return c < 0
	})
	return result
}

func matchesOwnership(book domain.Book, p Params) bool {
	if p.Ownership != OwnershipMine {
		return true
	}
	return book.OwnerUserID == p.ViewerID
}

func matchesStatus(book domain.Book, p Params) bool {
	status := strings.TrimSpace(p.Status)
	if status == "" || status == StatusAll {
		return true
	}
	return string(book.Status) == status
}

// matchesQuery reports whether the query is a case-insensitive substring
// of the title or the author. An empty query matches everything.
func matchesQuery(book domain.Book, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(book.Title), query) ||
		strings.Contains(strings.ToLower(book.Author), query)
}

// comparator returns a three-way comparison for the sort field. Text
// fields use a locale collator at base sensitivity, so case and
// diacritics are ignored ("a" sorts equal to "à"). Zero-valued fields
// compare as empty strings or zero timestamps.
func comparator(field SortField) func(a, b domain.Book) int {
	switch field {
	case SortByTitle:
		coll := newCollator()
		return func(a, b domain.Book) int {
			return coll.CompareString(a.Title, b.Title)
		}
	case SortByAuthor:
		coll := newCollator()
		return func(a, b domain.Book) int {
			return coll.CompareString(a.Author, b.Author)
		}
	default:
		return func(a, b domain.Book) int {
			switch {
			case a.CreatedAt < b.CreatedAt:
				return -1
			case a.CreatedAt > b.CreatedAt:
				return 1
			default:
				return 0
			}
		}
	}
}

func newCollator() *collate.Collator {
	return collate.New(language.Italian, collate.Loose)
}
