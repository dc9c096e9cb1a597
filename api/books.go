// Package api exposes the query engine over HTTP.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/WalterDeAlmeidaLira/TechChallenge/dataset"
	"github.com/WalterDeAlmeidaLira/TechChallenge/query"
)

// BookHandler serves the read-only book endpoints. Loader re-reads the
// persisted dataset for the reload endpoint.
type BookHandler struct {
	Engine *query.Engine
	Loader func() (*dataset.Dataset, error)
}

func (h *BookHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.GET("/health", h.Health)
	v1.GET("/books", h.List)
	v1.GET("/books/search", h.Search)
	v1.GET("/books/top-rated", h.TopRated)
	v1.GET("/books/price-range", h.PriceRange)
	v1.GET("/books/:id", h.Get)
	v1.GET("/categories", h.Categories)
	v1.GET("/stats/overview", h.StatsOverview)
	v1.GET("/stats/categories", h.StatsByCategory)
	v1.POST("/reload", h.Reload)
}

// Health reports whether a dataset snapshot is loaded and non-empty.
func (h *BookHandler) Health(c *gin.Context) {
	if !h.Engine.Loaded() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "book data not loaded",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "API operational and data loaded",
	})
}

func (h *BookHandler) List(c *gin.Context) {
	books, err := h.Engine.ListAll()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": books})
}

func (h *BookHandler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}

	book, err := h.Engine.GetByID(id)
	if err != nil {
		if errors.Is(err, query.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("book %d not found", id)})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": book})
}

func (h *BookHandler) Search(c *gin.Context) {
	books, err := h.Engine.Search(c.Query("title"), c.Query("category"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(books) == 0 {
		// No match is an outcome, not an error.
		c.JSON(http.StatusOK, gin.H{"message": "no books matched the given criteria"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": books})
}

func (h *BookHandler) TopRated(c *gin.Context) {
	books, err := h.Engine.TopRated()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": books})
}

func (h *BookHandler) PriceRange(c *gin.Context) {
	min, ok, err := queryFloat("min_price", c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_price must be a number"})
		return
	}
	var minPtr *float64
	if ok {
		minPtr = &min
	}

	max, ok, err := queryFloat("max_price", c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_price must be a number"})
		return
	}
	var maxPtr *float64
	if ok {
		maxPtr = &max
	}

	books, err := h.Engine.ByPriceRange(minPtr, maxPtr)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(books) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "no books found in this price range"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": books})
}

func (h *BookHandler) Categories(c *gin.Context) {
	categories, err := h.Engine.Categories()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"total":      len(categories),
	})
}

func (h *BookHandler) StatsOverview(c *gin.Context) {
	overview, err := h.Engine.StatsOverview()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": overview})
}

func (h *BookHandler) StatsByCategory(c *gin.Context) {
	stats, err := h.Engine.StatsByCategory()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// Reload re-reads the persisted dataset and swaps the snapshot atomically.
func (h *BookHandler) Reload(c *gin.Context) {
	if h.Loader == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no dataset loader configured"})
		return
	}

	ds, err := h.Loader()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": fmt.Sprintf("reload dataset: %v", err)})
		return
	}

	h.Engine.Load(ds)
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"count":  ds.Len(),
	})
}

func (h *BookHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, query.ErrNotLoaded) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "service unavailable: book data not loaded",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func queryFloat(key string, c *gin.Context) (float64, bool, error) {
	v := c.Query(key)
	if v == "" {
		return 0, false, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	return f, true, err
}
