package repository

import (
	"context"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
)

// UserRepository stores users keyed by username.
// Username uniqueness is enforced by the caller, Save simply upserts.
type UserRepository interface {
	FindByKey(ctx context.Context, username string) (entity.User, bool, error)
	FindAll(ctx context.Context) ([]entity.User, error)
	ExistsByKey(ctx context.Context, username string) (bool, error)
	Save(ctx context.Context, u entity.User) error
	Delete(ctx context.Context, username string) error
}
