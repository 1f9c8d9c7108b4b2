package application

import (
	"context"
	"time"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
)

// PasswordHasher hashes and verifies password credentials.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// BookIndexer keeps a search index of the catalog in sync. Optional.
type BookIndexer interface {
	Index(ctx context.Context, books ...entity.Book) error
	Remove(ctx context.Context, isbns ...string) error
	Search(ctx context.Context, q string, size int) ([]entity.Book, error)
}

// ActivityPublisher ships activity events to whoever listens. Optional.
// helpers.RabbitPublisher satisfies it.
type ActivityPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

const (
	EventUserRegistered  = "user.registered"
	EventUserDeactivated = "user.deactivated"
	EventPasswordChanged = "user.password_changed"
	EventReadingStarted  = "reading.started"
	EventReadingFinished = "reading.finished"
	EventBooksAdded      = "books.added"
	EventBooksUpdated    = "books.updated"
	EventBooksRemoved    = "books.removed"
)

// ActivityEvent is the JSON payload put on the activity queue.
type ActivityEvent struct {
	Type     string    `json:"type"`
	Username string    `json:"username,omitempty"`
	ISBNs    []string  `json:"isbns,omitempty"`
	At       time.Time `json:"at"`
}
