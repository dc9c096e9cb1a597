// Package dataset turns crawl results into an immutable, id-assigned
// collection and handles its on-disk representation.
package dataset

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/WalterDeAlmeidaLira/TechChallenge/models"
	"github.com/WalterDeAlmeidaLira/TechChallenge/scraper"
)

// Dataset is the complete collection from one crawl run. Ids are contiguous
// 1..N in discovery order. Once built it is never mutated; readers may share
// a Dataset freely.
type Dataset struct {
	books []models.Book
}

// New builds a dataset from already-finalized books. The slice is copied.
func New(books []models.Book) *Dataset {
	out := make([]models.Book, len(books))
	copy(out, books)
	return &Dataset{books: out}
}

// Books returns the items in id order. Callers must not modify the slice.
func (d *Dataset) Books() []models.Book {
	return d.books
}

// Len returns the number of items.
func (d *Dataset) Len() int {
	return len(d.books)
}

const defaultDedupeSize = 10000

// Builder accumulates crawl entries, drops duplicate detail URLs, and
// assigns ids by discovery order.
type Builder struct {
	seen    *lru.Cache[string, struct{}]
	entries []scraper.Entry
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	seen, _ := lru.New[string, struct{}](defaultDedupeSize)
	return &Builder{seen: seen}
}

// Add appends entries to the builder.
func (b *Builder) Add(entries ...scraper.Entry) {
	b.entries = append(b.entries, entries...)
}

// Build orders the entries by discovery position, removes entries whose
// detail URL was already seen, assigns ids 1..N, and returns the final
// immutable dataset. The seen-set is rebuilt on every call, so Build is
// repeatable.
func (b *Builder) Build() *Dataset {
	b.seen.Purge()
	sorted := make([]scraper.Entry, len(b.entries))
	copy(sorted, b.entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Page != sorted[j].Page {
			return sorted[i].Page < sorted[j].Page
		}
		return sorted[i].Pos < sorted[j].Pos
	})

	books := make([]models.Book, 0, len(sorted))
	for _, entry := range sorted {
		if entry.Book.URL != "" {
			if _, dup := b.seen.Get(entry.Book.URL); dup {
				continue
			}
			b.seen.Add(entry.Book.URL, struct{}{})
		}
		book := entry.Book
		book.ID = len(books) + 1
		books = append(books, book)
	}

	return &Dataset{books: books}
}
