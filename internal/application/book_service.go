package application

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
	repo "github.com/Melih7342/bookmanager/internal/domain/repository"
)

// BookService enforces key uniqueness and existence for the catalog.
// Bulk operations validate the whole batch first and only then write, so a rejected batch
// leaves the store untouched.
type BookService struct {
	Repo   repo.BookRepository
	Index  BookIndexer
	Events ActivityPublisher
	Logger *logrus.Logger

	locks keyLocker
}

func NewBookService(repo repo.BookRepository, index BookIndexer, events ActivityPublisher, logger *logrus.Logger) *BookService {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &BookService{Repo: repo, Index: index, Events: events, Logger: logger}
}

// ListAll returns every book. An empty catalog is not an error.
func (s *BookService) ListAll(ctx context.Context) ([]entity.Book, error) {
	books, err := s.Repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	if books == nil {
		books = []entity.Book{}
	}
	return books, nil
}

func (s *BookService) GetByKey(ctx context.Context, isbn string) (entity.Book, error) {
	b, ok, err := s.Repo.FindByKey(ctx, isbn)
	if err != nil {
		return entity.Book{}, fmt.Errorf("find book %s: %w", isbn, err)
	}
	if !ok {
		return entity.Book{}, fmt.Errorf("%w: %s", ErrBookNotFound, isbn)
	}
	return b, nil
}

func (s *BookService) Add(ctx context.Context, b entity.Book) error {
	return s.AddBulk(ctx, []entity.Book{b})
}

// AddBulk stores every book or none. A key that already exists, or that appears twice in
// the batch, rejects the whole batch with ErrBookAlreadyExists.
func (s *BookService) AddBulk(ctx context.Context, books []entity.Book) error {
	if len(books) == 0 {
		return nil
	}
	isbns := isbnsOf(books)
	unlock := s.locks.lock(isbns...)
	defer unlock()

	seen := make(map[string]struct{}, len(books))
	for _, b := range books {
		if _, dup := seen[b.ISBN]; dup {
			count("add_rejected")
			return fmt.Errorf("%w: %s (repeated in batch)", ErrBookAlreadyExists, b.ISBN)
		}
		seen[b.ISBN] = struct{}{}
		exists, err := s.Repo.ExistsByKey(ctx, b.ISBN)
		if err != nil {
			return fmt.Errorf("check book %s: %w", b.ISBN, err)
		}
		if exists {
			count("add_rejected")
			return fmt.Errorf("%w: %s", ErrBookAlreadyExists, b.ISBN)
		}
	}

	writes := make([]write, 0, len(books))
	for _, b := range books {
		writes = append(writes, write{
			key:   b.ISBN,
			apply: func(ctx context.Context) error { return s.Repo.Save(ctx, b) },
			undo:  func(ctx context.Context) error { return s.Repo.Delete(ctx, b.ISBN) },
		})
	}
	if err := s.commit(ctx, "add books", writes); err != nil {
		return err
	}

	count("books_added")
	s.Logger.WithField("count", len(books)).Info("books added")
	s.index(ctx, books)
	s.publish(ctx, EventBooksAdded, isbns)
	return nil
}

func (s *BookService) Remove(ctx context.Context, isbn string) error {
	return s.RemoveBulk(ctx, []string{isbn})
}

// RemoveBulk deletes every key or none. A missing key rejects the batch with ErrBookNotFound;
// a key listed twice counts as missing the second time.
func (s *BookService) RemoveBulk(ctx context.Context, isbns []string) error {
	if len(isbns) == 0 {
		return nil
	}
	unlock := s.locks.lock(isbns...)
	defer unlock()

	originals := make([]entity.Book, 0, len(isbns))
	seen := make(map[string]struct{}, len(isbns))
	for _, isbn := range isbns {
		if _, dup := seen[isbn]; dup {
			count("remove_rejected")
			return fmt.Errorf("%w: %s (repeated in batch)", ErrBookNotFound, isbn)
		}
		seen[isbn] = struct{}{}
		b, ok, err := s.Repo.FindByKey(ctx, isbn)
		if err != nil {
			return fmt.Errorf("find book %s: %w", isbn, err)
		}
		if !ok {
			count("remove_rejected")
			return fmt.Errorf("%w: %s", ErrBookNotFound, isbn)
		}
		originals = append(originals, b)
	}

	writes := make([]write, 0, len(originals))
	for _, b := range originals {
		writes = append(writes, write{
			key:   b.ISBN,
			apply: func(ctx context.Context) error { return s.Repo.Delete(ctx, b.ISBN) },
			undo:  func(ctx context.Context) error { return s.Repo.Save(ctx, b) },
		})
	}
	if err := s.commit(ctx, "remove books", writes); err != nil {
		return err
	}

	count("books_removed")
	s.Logger.WithField("count", len(isbns)).Info("books removed")
	if s.Index != nil {
		if err := s.Index.Remove(ctx, isbns...); err != nil {
			s.Logger.WithError(err).Warn("search index remove failed")
		}
	}
	s.publish(ctx, EventBooksRemoved, isbns)
	return nil
}

// Update replaces title, author and pages of an existing book. The ISBN selects the record.
func (s *BookService) Update(ctx context.Context, b entity.Book) error {
	return s.UpdateBulk(ctx, []entity.Book{b})
}

// UpdateBulk updates every book or none. Every key must exist before anything is written.
func (s *BookService) UpdateBulk(ctx context.Context, books []entity.Book) error {
	if len(books) == 0 {
		return nil
	}
	isbns := isbnsOf(books)
	unlock := s.locks.lock(isbns...)
	defer unlock()

	previous := make(map[string]entity.Book, len(books))
	for _, b := range books {
		if _, seen := previous[b.ISBN]; seen {
			continue
		}
		old, ok, err := s.Repo.FindByKey(ctx, b.ISBN)
		if err != nil {
			return fmt.Errorf("find book %s: %w", b.ISBN, err)
		}
		if !ok {
			count("update_rejected")
			return fmt.Errorf("%w: %s", ErrBookNotFound, b.ISBN)
		}
		previous[b.ISBN] = old
	}

	writes := make([]write, 0, len(books))
	for _, b := range books {
		old := previous[b.ISBN]
		writes = append(writes, write{
			key:   b.ISBN,
			apply: func(ctx context.Context) error { return s.Repo.Save(ctx, b) },
			undo:  func(ctx context.Context) error { return s.Repo.Save(ctx, old) },
		})
	}
	if err := s.commit(ctx, "update books", writes); err != nil {
		return err
	}

	count("books_updated")
	s.Logger.WithField("count", len(books)).Info("books updated")
	s.index(ctx, books)
	s.publish(ctx, EventBooksUpdated, isbns)
	return nil
}

// Search matches q against title and author. It asks the search index when one is
// configured and falls back to scanning the store.
func (s *BookService) Search(ctx context.Context, q string, size int) ([]entity.Book, error) {
	if size <= 0 || size > 50 {
		size = 10
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return []entity.Book{}, nil
	}
	if s.Index != nil {
		books, err := s.Index.Search(ctx, q, size)
		if err == nil {
			return books, nil
		}
		s.Logger.WithError(err).Warn("search index query failed, scanning store")
	}

	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(q)
	out := make([]entity.Book, 0, size)
	for _, b := range all {
		if strings.Contains(strings.ToLower(b.Title), needle) || strings.Contains(strings.ToLower(b.Author), needle) {
			out = append(out, b)
			if len(out) == size {
				break
			}
		}
	}
	return out, nil
}

// write is one step of the commit pass together with the step that reverts it.
type write struct {
	key   string
	apply func(context.Context) error
	undo  func(context.Context) error
}

// commit applies the writes in order. When one fails, the ones already applied are undone
// in reverse order so the store ends up as it was before the call.
func (s *BookService) commit(ctx context.Context, op string, writes []write) error {
	for i, w := range writes {
		err := w.apply(ctx)
		if err == nil {
			continue
		}
		count("commit_failed")
		undoCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		for j := i - 1; j >= 0; j-- {
			if uErr := writes[j].undo(undoCtx); uErr != nil {
				s.Logger.WithError(uErr).WithField("isbn", writes[j].key).Error("revert failed, store may be inconsistent")
			}
		}
		return fmt.Errorf("%s: %s: %w", op, w.key, err)
	}
	return nil
}

func (s *BookService) index(ctx context.Context, books []entity.Book) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, books...); err != nil {
		s.Logger.WithError(err).Warn("search index update failed")
	}
}

func (s *BookService) publish(ctx context.Context, typ string, isbns []string) {
	if s.Events == nil {
		return
	}
	ev := ActivityEvent{Type: typ, ISBNs: isbns, At: time.Now().UTC()}
	if err := s.Events.PublishJSON(ctx, ev); err != nil {
		s.Logger.WithError(err).WithField("type", typ).Warn("activity publish failed")
	}
}

func isbnsOf(books []entity.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ISBN
	}
	return out
}
