package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
	"github.com/Melih7342/bookmanager/pkg/response"
)

// BookCatalog is the part of the book service the handlers call.
type BookCatalog interface {
	ListAll(ctx context.Context) ([]entity.Book, error)
	GetByKey(ctx context.Context, isbn string) (entity.Book, error)
	Add(ctx context.Context, b entity.Book) error
	AddBulk(ctx context.Context, books []entity.Book) error
	Update(ctx context.Context, b entity.Book) error
	UpdateBulk(ctx context.Context, books []entity.Book) error
	Remove(ctx context.Context, isbn string) error
	RemoveBulk(ctx context.Context, isbns []string) error
	Search(ctx context.Context, q string, size int) ([]entity.Book, error)
}

type BookHandler struct {
	Svc    BookCatalog
	Logger *logrus.Logger
}

func NewBookHandler(svc BookCatalog, logger *logrus.Logger) *BookHandler {
	return &BookHandler{Svc: svc, Logger: logger}
}

type bookRequest struct {
	ISBN   string `json:"isbn" binding:"required,max=32"`
	Title  string `json:"title" binding:"max=255"`
	Author string `json:"author" binding:"max=255"`
	Pages  int    `json:"pages" binding:"gte=0"`
}

func (r bookRequest) toEntity() entity.Book {
	return entity.Book{ISBN: r.ISBN, Title: r.Title, Author: r.Author, Pages: r.Pages}
}

// updateBookRequest takes the key from the path; a body ISBN must match it.
type updateBookRequest struct {
	ISBN   string `json:"isbn"`
	Title  string `json:"title" binding:"max=255"`
	Author string `json:"author" binding:"max=255"`
	Pages  int    `json:"pages" binding:"gte=0"`
}

func toEntities(reqs []bookRequest) []entity.Book {
	out := make([]entity.Book, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.toEntity())
	}
	return out
}

func (h *BookHandler) List(c *gin.Context) {
	books, err := h.Svc.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if len(books) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	response.Success(c, http.StatusOK, books, "books", map[string]any{"count": len(books)})
}

func (h *BookHandler) Get(c *gin.Context) {
	b, err := h.Svc.GetByKey(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, b, "book", nil)
}

func (h *BookHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid query", map[string]string{"q": "is required"})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	books, err := h.Svc.Search(c.Request.Context(), q, size)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, books, "search results", map[string]any{"count": len(books)})
}

func (h *BookHandler) Add(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	b := req.toEntity()
	if err := h.Svc.Add(c.Request.Context(), b); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Location", "/api/books/"+b.ISBN)
	response.Success(c, http.StatusCreated, b, "book added", nil)
}

func (h *BookHandler) AddBulk(c *gin.Context) {
	var reqs []bookRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := h.Svc.AddBulk(c.Request.Context(), toEntities(reqs)); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, map[string]int{"added": len(reqs)}, fmt.Sprintf("Successfully added %d books", len(reqs)), nil)
}

func (h *BookHandler) Update(c *gin.Context) {
	isbn := c.Param("isbn")
	var req updateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	if req.ISBN != "" && req.ISBN != isbn {
		response.Error[any](c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", map[string]string{"isbn": "must match the path"})
		return
	}
	b := entity.Book{ISBN: isbn, Title: req.Title, Author: req.Author, Pages: req.Pages}
	if err := h.Svc.Update(c.Request.Context(), b); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, b, "book updated", nil)
}

func (h *BookHandler) UpdateBulk(c *gin.Context) {
	var reqs []bookRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := h.Svc.UpdateBulk(c.Request.Context(), toEntities(reqs)); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, map[string]int{"updated": len(reqs)}, fmt.Sprintf("Successfully updated %d books", len(reqs)), nil)
}

func (h *BookHandler) Remove(c *gin.Context) {
	if err := h.Svc.Remove(c.Request.Context(), c.Param("isbn")); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BookHandler) RemoveBulk(c *gin.Context) {
	var isbns []string
	if err := c.ShouldBindJSON(&isbns); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := h.Svc.RemoveBulk(c.Request.Context(), isbns); err != nil {
		respondError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, map[string]int{"removed": len(isbns)}, fmt.Sprintf("Successfully removed %d books", len(isbns)), nil)
}
