package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/WalterDeAlmeidaLira/TechChallenge/dataset"
	"github.com/WalterDeAlmeidaLira/TechChallenge/models"
)

func loadedEngine(books []models.Book) *Engine {
	e := NewEngine()
	e.Load(dataset.New(books))
	return e
}

func book(id int, title string, price float64, rating int, category string) models.Book {
	return models.Book{
		ID:       id,
		Title:    title,
		Price:    price,
		Rating:   rating,
		Category: category,
	}
}

func TestEngineNotLoaded(t *testing.T) {
	e := NewEngine()

	_, err := e.ListAll()
	require.ErrorIs(t, err, ErrNotLoaded)
	_, err = e.GetByID(1)
	require.ErrorIs(t, err, ErrNotLoaded)
	_, err = e.Search("x", "")
	require.ErrorIs(t, err, ErrNotLoaded)
	_, err = e.TopRated()
	require.ErrorIs(t, err, ErrNotLoaded)
	_, err = e.StatsOverview()
	require.ErrorIs(t, err, ErrNotLoaded)
	require.False(t, e.Loaded())

	// An empty snapshot is as good as no snapshot.
	e.Load(dataset.New(nil))
	_, err = e.ListAll()
	require.ErrorIs(t, err, ErrNotLoaded)
	require.False(t, e.Loaded())
}

func TestListAllKeepsIDOrder(t *testing.T) {
	e := loadedEngine([]models.Book{
		book(1, "A", 1, 1, "X"),
		book(2, "B", 2, 2, "X"),
		book(3, "C", 3, 3, "Y"),
	})

	books, err := e.ListAll()
	require.NoError(t, err)
	require.Len(t, books, 3)
	for i, b := range books {
		require.Equal(t, i+1, b.ID)
	}
}

func TestGetByID(t *testing.T) {
	e := loadedEngine([]models.Book{
		book(1, "A", 1, 1, "X"),
		book(2, "B", 2, 2, "X"),
	})

	b, err := e.GetByID(2)
	require.NoError(t, err)
	require.Equal(t, "B", b.Title)

	_, err = e.GetByID(99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSearchTitleCaseInsensitiveSubstring(t *testing.T) {
	e := loadedEngine([]models.Book{
		book(1, "Harry Potter", 10, 5, "Fiction"),
		book(2, "The Hobbit", 20, 4, "Fantasy"),
	})

	books, err := e.Search("harry", "")
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, "Harry Potter", books[0].Title)
}

func TestSearchCategoryCaseInsensitiveExact(t *testing.T) {
	e := loadedEngine([]models.Book{
		book(1, "A", 10, 5, "Fiction"),
		book(2, "B", 20, 4, "fiction"),
		book(3, "C", 30, 3, "Nonfiction"),
	})

	books, err := e.Search("", "Fiction")
	require.NoError(t, err)
	require.Len(t, books, 2)
	require.Equal(t, "A", books[0].Title)
	require.Equal(t, "B", books[1].Title)
}

func TestSearchFiltersAreANDed(t *testing.T) {
	e := loadedEngine([]models.Book{
		book(1, "Harry Potter", 10, 5, "Fiction"),
		book(2, "Harry's Garden", 20, 4, "Gardening"),
	})

	books, err := e.Search("harry", "fiction")
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, 1, books[0].ID)
}

func TestSearchNoMatchIsEmptyNotError(t *testing.T) {
	e := loadedEngine([]models.Book{book(1, "A", 10, 5, "Fiction")})

	books, err := e.Search("zzz", "")
	require.NoError(t, err)
	require.Empty(t, books)
}

func TestTopRatedIncludesAllTiesInIDOrder(t *testing.T) {
	ratings := []int{5, 3, 5, 1, 5}
	books := make([]models.Book, len(ratings))
	for i, r := range ratings {
		books[i] = book(i+1, "B", 10, r, "X")
	}
	e := loadedEngine(books)

	top, err := e.TopRated()
	require.NoError(t, err)
	require.Len(t, top, 3)
	require.Equal(t, []int{1, 3, 5}, []int{top[0].ID, top[1].ID, top[2].ID})
}

func TestByPriceRangeInclusiveBounds(t *testing.T) {
	prices := []float64{5, 10, 15, 20, 25}
	books := make([]models.Book, len(prices))
	for i, p := range prices {
		books[i] = book(i+1, "B", p, 3, "X")
	}
	e := loadedEngine(books)

	min, max := 10.0, 20.0
	got, err := e.ByPriceRange(&min, &max)
	require.NoError(t, err)

	gotPrices := make([]float64, len(got))
	for i, b := range got {
		gotPrices[i] = b.Price
	}
	require.Equal(t, []float64{10, 15, 20}, gotPrices)

	// Only a lower bound.
	got, err = e.ByPriceRange(&max, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// No bounds at all returns everything.
	got, err = e.ByPriceRange(nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 5)
}

func TestCategoriesDistinctFirstSeen(t *testing.T) {
	e := loadedEngine([]models.Book{
		book(1, "A", 1, 1, "Fiction"),
		book(2, "B", 2, 2, "Poetry"),
		book(3, "C", 3, 3, "Fiction"),
	})

	categories, err := e.Categories()
	require.NoError(t, err)
	require.Equal(t, []string{"Fiction", "Poetry"}, categories)
}

func TestStatsOverview(t *testing.T) {
	e := loadedEngine([]models.Book{
		book(1, "A", 10.00, 5, "X"),
		book(2, "B", 20.00, 5, "X"),
		book(3, "C", 15.50, 4, "Y"),
	})

	overview, err := e.StatsOverview()
	require.NoError(t, err)
	require.Equal(t, 3, overview.Count)
	require.Equal(t, 15.17, overview.AveragePrice)
	require.Equal(t, map[int]int{5: 2, 4: 1}, overview.RatingsByStar)
}

func TestStatsByCategory(t *testing.T) {
	e := loadedEngine([]models.Book{
		book(1, "A1", 10, 3, "A"),
		book(2, "A2", 20, 3, "A"),
		book(3, "B1", 5, 3, "B"),
	})

	rows, err := e.StatsByCategory()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byCategory := make(map[string]CategoryStats, len(rows))
	for _, row := range rows {
		byCategory[row.Category] = row
	}

	a := byCategory["A"]
	require.Equal(t, 2, a.Count)
	require.Equal(t, 15.0, a.AveragePrice)
	require.Equal(t, 10.0, a.MinPrice)
	require.Equal(t, 20.0, a.MaxPrice)

	b := byCategory["B"]
	require.Equal(t, 1, b.Count)
	require.Equal(t, 5.0, b.AveragePrice)
	require.Equal(t, 5.0, b.MinPrice)
	require.Equal(t, 5.0, b.MaxPrice)
}

func TestReloadSwapsSnapshot(t *testing.T) {
	e := loadedEngine([]models.Book{book(1, "Old", 1, 1, "X")})

	e.Load(dataset.New([]models.Book{
		book(1, "New", 2, 2, "Y"),
		book(2, "Newer", 3, 3, "Y"),
	}))

	books, err := e.ListAll()
	require.NoError(t, err)
	require.Len(t, books, 2)
	require.Equal(t, "New", books[0].Title)
}
