package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
	repo "github.com/Melih7342/bookmanager/internal/domain/repository"
)

// DemoBooks are stored by SeedDemoData.
var DemoBooks = []entity.Book{
	{ISBN: "978-0132350884", Title: "Clean Code", Author: "Robert C. Martin", Pages: 464},
	{ISBN: "978-0596007126", Title: "Head First Design Patterns", Author: "Eric Freeman", Pages: 694},
	{ISBN: "978-0134685991", Title: "Effective Java", Author: "Joshua Bloch", Pages: 416},
}

// SeedDemoData creates admin/admin, user/user and the demo books when no user exists yet.
// The demo credentials go straight to the store and skip request validation.
// It reports whether anything was written.
func SeedDemoData(ctx context.Context, users repo.UserRepository, books repo.BookRepository, hasher PasswordHasher, logger *logrus.Logger) (bool, error) {
	existing, err := users.FindAll(ctx)
	if err != nil {
		return false, fmt.Errorf("list users: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}
	if logger != nil {
		logger.Info("initializing demo data")
	}

	accounts := []struct {
		name string
		role entity.Role
	}{
		{"admin", entity.RoleAdmin},
		{"user", entity.RoleReader},
	}
	for _, a := range accounts {
		hash, err := hasher.Hash(a.name)
		if err != nil {
			return false, fmt.Errorf("hash password: %w", err)
		}
		u := entity.User{
			ID:       uuid.NewString(),
			Username: a.name,
			Password: hash,
			Role:     a.role,
			Status:   entity.StatusActive,
		}
		if err := users.Save(ctx, u); err != nil {
			return false, fmt.Errorf("save user %s: %w", a.name, err)
		}
	}
	for _, b := range DemoBooks {
		if err := books.Save(ctx, b); err != nil {
			return false, fmt.Errorf("save book %s: %w", b.ISBN, err)
		}
	}
	if logger != nil {
		logger.Info("demo data created: admin/admin and user/user")
	}
	return true, nil
}
