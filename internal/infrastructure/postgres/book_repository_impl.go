package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
	"github.com/Melih7342/bookmanager/internal/domain/repository"
)

type BookRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

var _ repository.BookRepository = (*BookRepository)(nil)

func NewBookRepository(pool *pgxpool.Pool, timeout time.Duration) *BookRepository {
	return &BookRepository{pool: pool, timeout: timeout}
}

func (r *BookRepository) FindByKey(ctx context.Context, isbn string) (entity.Book, bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var b entity.Book
	err := r.pool.QueryRow(ctx, `
		SELECT isbn, title, author, pages
		FROM books
		WHERE isbn = $1
	`, isbn).Scan(&b.ISBN, &b.Title, &b.Author, &b.Pages)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.Book{}, false, nil
	}
	if err != nil {
		return entity.Book{}, false, err
	}
	return b, true, nil
}

func (r *BookRepository) FindAll(ctx context.Context) ([]entity.Book, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT isbn, title, author, pages FROM books ORDER BY isbn`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]entity.Book, 0)
	for rows.Next() {
		var b entity.Book
		if err := rows.Scan(&b.ISBN, &b.Title, &b.Author, &b.Pages); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BookRepository) ExistsByKey(ctx context.Context, isbn string) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE isbn = $1)`, isbn).Scan(&exists)
	return exists, err
}

// Save inserts or replaces the book stored under b.ISBN.
func (r *BookRepository) Save(ctx context.Context, b entity.Book) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO books (isbn, title, author, pages)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (isbn) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			pages = EXCLUDED.pages
	`, b.ISBN, b.Title, b.Author, b.Pages)
	return err
}

func (r *BookRepository) Delete(ctx context.Context, isbn string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `DELETE FROM books WHERE isbn = $1`, isbn)
	return err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
