package repository

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks github.com/Melih7342/bookmanager/internal/domain/repository BookRepository,UserRepository

import (
	"context"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
)

// BookRepository stores books keyed by ISBN.
// Implementations must be safe for concurrent use and must not share slices with callers.
type BookRepository interface {
	FindByKey(ctx context.Context, isbn string) (entity.Book, bool, error)
	FindAll(ctx context.Context) ([]entity.Book, error)
	ExistsByKey(ctx context.Context, isbn string) (bool, error)
	Save(ctx context.Context, b entity.Book) error
	Delete(ctx context.Context, isbn string) error
}
