// Package query answers read-only lookups and aggregations over a dataset
// snapshot. All operations are O(N) scans over an immutable snapshot, so
// they are safe to call concurrently without coordination.
package query

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"

	"github.com/WalterDeAlmeidaLira/TechChallenge/dataset"
	"github.com/WalterDeAlmeidaLira/TechChallenge/models"
)

var (
	// ErrNotLoaded is returned when a query is issued before any dataset
	// snapshot is present, or the snapshot is empty.
	ErrNotLoaded = errors.New("dataset not loaded")

	// ErrNotFound is returned when no book matches the requested id.
	ErrNotFound = errors.New("book not found")
)

// Engine serves queries against the current dataset snapshot. Reload swaps
// the snapshot atomically; in-flight readers keep the snapshot they started
// with and never observe a mixed view.
type Engine struct {
	snapshot atomic.Pointer[dataset.Dataset]
}

// NewEngine returns an engine with no snapshot loaded.
func NewEngine() *Engine {
	return &Engine{}
}

// Load replaces the current snapshot.
func (e *Engine) Load(ds *dataset.Dataset) {
	e.snapshot.Store(ds)
}

// Loaded reports whether a non-empty snapshot is being served.
func (e *Engine) Loaded() bool {
	ds := e.snapshot.Load()
	return ds != nil && ds.Len() > 0
}

func (e *Engine) books() ([]models.Book, error) {
	ds := e.snapshot.Load()
	if ds == nil || ds.Len() == 0 {
		return nil, ErrNotLoaded
	}
	return ds.Books(), nil
}

// ListAll returns every book in id order.
func (e *Engine) ListAll() ([]models.Book, error) {
	books, err := e.books()
	if err != nil {
		return nil, err
	}
	out := make([]models.Book, len(books))
	copy(out, books)
	return out, nil
}

// GetByID returns the book with the given id, or ErrNotFound.
func (e *Engine) GetByID(id int) (models.Book, error) {
	books, err := e.books()
	if err != nil {
		return models.Book{}, err
	}
	for _, book := range books {
		if book.ID == id {
			return book, nil
		}
	}
	return models.Book{}, ErrNotFound
}

// Search filters by case-insensitive title substring and case-insensitive
// exact category. Empty arguments disable the corresponding filter; both
// filters are AND-ed. An empty result is a valid outcome, not an error.
func (e *Engine) Search(title, category string) ([]models.Book, error) {
	books, err := e.books()
	if err != nil {
		return nil, err
	}

	titleNeedle := strings.ToLower(title)
	categoryNeedle := strings.ToLower(category)

	out := []models.Book{}
	for _, book := range books {
		if titleNeedle != "" && !strings.Contains(strings.ToLower(book.Title), titleNeedle) {
			continue
		}
		if categoryNeedle != "" && strings.ToLower(book.Category) != categoryNeedle {
			continue
		}
		out = append(out, book)
	}
	return out, nil
}

// TopRated returns every book whose rating equals the maximum rating present
// in the dataset, in id order.
func (e *Engine) TopRated() ([]models.Book, error) {
	books, err := e.books()
	if err != nil {
		return nil, err
	}

	maxRating := 0
	for _, book := range books {
		if book.Rating > maxRating {
			maxRating = book.Rating
		}
	}

	out := []models.Book{}
	for _, book := range books {
		if book.Rating == maxRating {
			out = append(out, book)
		}
	}
	return out, nil
}

// ByPriceRange returns books with price in [min, max], either bound
// optional and inclusive.
func (e *Engine) ByPriceRange(min, max *float64) ([]models.Book, error) {
	books, err := e.books()
	if err != nil {
		return nil, err
	}

	out := []models.Book{}
	for _, book := range books {
		if min != nil && book.Price < *min {
			continue
		}
		if max != nil && book.Price > *max {
			continue
		}
		out = append(out, book)
	}
	return out, nil
}

// Categories returns the distinct category values in first-seen order.
func (e *Engine) Categories() ([]string, error) {
	books, err := e.books()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := []string{}
	for _, book := range books {
		if _, ok := seen[book.Category]; ok {
			continue
		}
		seen[book.Category] = struct{}{}
		out = append(out, book.Category)
	}
	return out, nil
}

// Overview aggregates the whole collection.
type Overview struct {
	Count         int         `json:"total_books"`
	AveragePrice  float64     `json:"average_price"`
	RatingsByStar map[int]int `json:"ratings_distribution"`
}

// StatsOverview returns count, mean price rounded to 2 decimals, and the
// rating histogram.
func (e *Engine) StatsOverview() (*Overview, error) {
	books, err := e.books()
	if err != nil {
		return nil, err
	}

	total := 0.0
	histogram := make(map[int]int)
	for _, book := range books {
		total += book.Price
		histogram[book.Rating]++
	}

	return &Overview{
		Count:         len(books),
		AveragePrice:  round2(total / float64(len(books))),
		RatingsByStar: histogram,
	}, nil
}

// CategoryStats aggregates prices within one category.
type CategoryStats struct {
	Category     string  `json:"category"`
	Count        int     `json:"total_books"`
	AveragePrice float64 `json:"average_price"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
}

// StatsByCategory returns one row per distinct category, in first-seen
// order; ordering carries no meaning.
func (e *Engine) StatsByCategory() ([]CategoryStats, error) {
	books, err := e.books()
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	rows := []CategoryStats{}
	totals := []float64{}
	for _, book := range books {
		i, ok := index[book.Category]
		if !ok {
			i = len(rows)
			index[book.Category] = i
			rows = append(rows, CategoryStats{
				Category: book.Category,
				MinPrice: book.Price,
				MaxPrice: book.Price,
			})
			totals = append(totals, 0)
		}
		rows[i].Count++
		totals[i] += book.Price
		if book.Price < rows[i].MinPrice {
			rows[i].MinPrice = book.Price
		}
		if book.Price > rows[i].MaxPrice {
			rows[i].MaxPrice = book.Price
		}
	}

	for i := range rows {
		rows[i].AveragePrice = round2(totals[i] / float64(rows[i].Count))
	}
	return rows, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
