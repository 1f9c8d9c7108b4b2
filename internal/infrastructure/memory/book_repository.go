// Package memory provides map-backed stores with no durability.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
	"github.com/Melih7342/bookmanager/internal/domain/repository"
)

type BookRepository struct {
	mu    sync.RWMutex
	books map[string]entity.Book
}

func NewBookRepository() *BookRepository {
	return &BookRepository{books: make(map[string]entity.Book)}
}

func (r *BookRepository) FindByKey(_ context.Context, isbn string) (entity.Book, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[isbn]
	return b, ok, nil
}

// FindAll returns the books sorted by ISBN.
func (r *BookRepository) FindAll(_ context.Context) ([]entity.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.Book, 0, len(r.books))
	for _, b := range r.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ISBN < out[j].ISBN })
	return out, nil
}

func (r *BookRepository) ExistsByKey(_ context.Context, isbn string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.books[isbn]
	return ok, nil
}

func (r *BookRepository) Save(_ context.Context, b entity.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[b.ISBN] = b
	return nil
}

func (r *BookRepository) Delete(_ context.Context, isbn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.books, isbn)
	return nil
}

var _ repository.BookRepository = (*BookRepository)(nil)
