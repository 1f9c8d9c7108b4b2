package bootstrap

import (
	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/config"
	"github.com/Melih7342/bookmanager/internal/application"
	"github.com/Melih7342/bookmanager/pkg/helpers"
)

// NewServices wires the book and user services onto the stores and optional backends.
func NewServices(cfg *config.Config, logger *logrus.Logger, s *Stores, b *Backends) (*application.BookService, *application.UserService) {
	hasher := helpers.NewBcryptHasher(cfg.BcryptCost)
	books := application.NewBookService(s.Books, b.Indexer(), b.Events(), logger)
	users := application.NewUserService(s.Users, s.Books, hasher, b.Events(), logger)
	return books, users
}
