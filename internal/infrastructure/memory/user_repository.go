package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
	"github.com/Melih7342/bookmanager/internal/domain/repository"
)

// UserRepository keeps users keyed by username. Records are cloned on the way in and out.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]entity.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]entity.User)}
}

func (r *UserRepository) FindByKey(_ context.Context, username string) (entity.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return entity.User{}, false, nil
	}
	return u.Clone(), true, nil
}

// FindAll returns the users sorted by username.
func (r *UserRepository) FindAll(_ context.Context) ([]entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *UserRepository) ExistsByKey(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[username]
	return ok, nil
}

func (r *UserRepository) Save(_ context.Context, u entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.Username] = u.Clone()
	return nil
}

func (r *UserRepository) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, username)
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
