package application

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
	repo "github.com/Melih7342/bookmanager/internal/domain/repository"
)

// UserService owns registration, credentials, account state and reading lists.
// Every mutation of a user runs under that user's lock, so read-modify-write is atomic
// per record.
type UserService struct {
	Users  repo.UserRepository
	Books  repo.BookRepository
	Hasher PasswordHasher
	Events ActivityPublisher
	Logger *logrus.Logger

	locks     keyLocker
	dummyMu   sync.Mutex
	dummyHash string
}

// fallbackDummyHash is a well-formed bcrypt hash used for unknown users while the
// per-service dummy hash cannot be produced.
const fallbackDummyHash = "$2a$10$dXJ3SW6G7P50lGmMkkmwe.20cQQubK3.HZWzG3YB1tlRy.fqvM/BG"

// Profile is the public projection of a user. It never carries the password hash.
type Profile struct {
	ID               string      `json:"id"`
	Username         string      `json:"username"`
	Role             entity.Role `json:"role"`
	CurrentlyReading []string    `json:"currently_reading"`
	ReadBooks        []string    `json:"read_books"`

	CredentialVersion int `json:"-"`
}

// ReadingList selects one of a user's two lists.
type ReadingList int

const (
	CurrentlyReading ReadingList = iota
	Read
)

func NewUserService(users repo.UserRepository, books repo.BookRepository, hasher PasswordHasher, events ActivityPublisher, logger *logrus.Logger) *UserService {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &UserService{Users: users, Books: books, Hasher: hasher, Events: events, Logger: logger}
}

func toProfile(u entity.User) Profile {
	p := Profile{
		ID:               u.ID,
		Username:         u.Username,
		Role:             u.Role,
		CurrentlyReading: u.CurrentlyReading,
		ReadBooks:        u.ReadBooks,

		CredentialVersion: u.CredentialVersion,
	}
	if p.CurrentlyReading == nil {
		p.CurrentlyReading = []string{}
	}
	if p.ReadBooks == nil {
		p.ReadBooks = []string{}
	}
	return p
}

// Register creates an active reader account.
func (s *UserService) Register(ctx context.Context, username, password string) (Profile, error) {
	return s.RegisterWithRole(ctx, username, password, entity.RoleReader)
}

// RegisterWithRole creates an active account holding role.
func (s *UserService) RegisterWithRole(ctx context.Context, username, password string, role entity.Role) (Profile, error) {
	if !role.Valid() {
		return Profile{}, fmt.Errorf("register %s: invalid role %q", username, role)
	}
	log := s.Logger.WithField("username", username)
	log.Info("attempting to register a new user")

	unlock := s.locks.lock(username)
	defer unlock()

	exists, err := s.Users.ExistsByKey(ctx, username)
	if err != nil {
		return Profile{}, fmt.Errorf("check user %s: %w", username, err)
	}
	if exists {
		log.Warn("registration failed: username is already taken")
		return Profile{}, ErrUsernameTaken
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return Profile{}, fmt.Errorf("hash password: %w", err)
	}
	u := entity.User{
		ID:       uuid.NewString(),
		Username: username,
		Password: hash,
		Role:     role,
		Status:   entity.StatusActive,
	}
	if err := s.Users.Save(ctx, u); err != nil {
		return Profile{}, fmt.Errorf("save user %s: %w", username, err)
	}
	log.WithField("role", role).Info("user registered")
	s.publish(ctx, EventUserRegistered, username, nil)
	return toProfile(u), nil
}

// Login checks existence, then the password, then the account state. A disabled account is
// only reported to a caller who knows the password; every other failure is ErrBadCredentials.
func (s *UserService) Login(ctx context.Context, username, password string) (Profile, error) {
	u, ok, err := s.Users.FindByKey(ctx, username)
	if err != nil {
		return Profile{}, fmt.Errorf("find user %s: %w", username, err)
	}
	if !ok {
		// Burn the same hashing time as a real check.
		s.Hasher.Verify(s.dummy(), password)
		return Profile{}, ErrBadCredentials
	}
	if !s.Hasher.Verify(u.Password, password) {
		return Profile{}, ErrBadCredentials
	}
	if !u.Active() {
		return Profile{}, ErrDisabledAccount
	}
	return toProfile(u), nil
}

// Principal resolves an identity from a bearer token. version is the credential
// version the token was issued under; tokens from before a password change fail.
func (s *UserService) Principal(ctx context.Context, username string, version int) (Profile, error) {
	u, ok, err := s.Users.FindByKey(ctx, username)
	if err != nil {
		return Profile{}, fmt.Errorf("find user %s: %w", username, err)
	}
	if !ok || u.CredentialVersion != version {
		return Profile{}, ErrBadCredentials
	}
	if !u.Active() {
		return Profile{}, ErrDisabledAccount
	}
	return toProfile(u), nil
}

// DeactivateAccount disables the account after verifying the live password.
// The record is kept.
func (s *UserService) DeactivateAccount(ctx context.Context, username, password string) error {
	unlock := s.locks.lock(username)
	defer unlock()

	u, err := s.verified(ctx, username, password)
	if err != nil {
		return err
	}
	u.Status = entity.StatusDisabled
	if err := s.Users.Save(ctx, u); err != nil {
		return fmt.Errorf("save user %s: %w", username, err)
	}
	s.Logger.WithField("username", username).Info("account deactivated")
	s.publish(ctx, EventUserDeactivated, username, nil)
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	unlock := s.locks.lock(username)
	defer unlock()

	u, err := s.verified(ctx, username, oldPassword)
	if err != nil {
		return err
	}
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = hash
	u.CredentialVersion++
	if err := s.Users.Save(ctx, u); err != nil {
		return fmt.Errorf("save user %s: %w", username, err)
	}
	s.Logger.WithField("username", username).Info("password changed")
	s.publish(ctx, EventPasswordChanged, username, nil)
	return nil
}

func (s *UserService) GetProfile(ctx context.Context, username string) (Profile, error) {
	u, err := s.find(ctx, username)
	if err != nil {
		return Profile{}, err
	}
	return toProfile(u), nil
}

// ReadingList resolves one of the user's lists to book records. References to books that
// have since been removed from the catalog are skipped here; the profile still lists them.
func (s *UserService) ReadingList(ctx context.Context, username string, list ReadingList) ([]entity.Book, error) {
	u, err := s.find(ctx, username)
	if err != nil {
		return nil, err
	}
	isbns := u.CurrentlyReading
	if list == Read {
		isbns = u.ReadBooks
	}
	out := make([]entity.Book, 0, len(isbns))
	for _, isbn := range isbns {
		b, ok, err := s.Books.FindByKey(ctx, isbn)
		if err != nil {
			return nil, fmt.Errorf("find book %s: %w", isbn, err)
		}
		if ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// MarkAsCurrentlyReading adds isbn to the currently-reading list. Repeats are no-ops.
func (s *UserService) MarkAsCurrentlyReading(ctx context.Context, username, isbn string) error {
	return s.mutateLists(ctx, username, isbn, EventReadingStarted, (*entity.User).StartReading)
}

// MarkAsRead adds isbn to the read list and drops it from currently-reading.
func (s *UserService) MarkAsRead(ctx context.Context, username, isbn string) error {
	return s.mutateLists(ctx, username, isbn, EventReadingFinished, (*entity.User).FinishReading)
}

func (s *UserService) mutateLists(ctx context.Context, username, isbn, event string, apply func(*entity.User, string)) error {
	unlock := s.locks.lock(username)
	defer unlock()

	u, err := s.find(ctx, username)
	if err != nil {
		return err
	}
	exists, err := s.Books.ExistsByKey(ctx, isbn)
	if err != nil {
		return fmt.Errorf("check book %s: %w", isbn, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrBookNotFound, isbn)
	}
	apply(&u, isbn)
	if err := s.Users.Save(ctx, u); err != nil {
		return fmt.Errorf("save user %s: %w", username, err)
	}
	s.publish(ctx, event, username, []string{isbn})
	return nil
}

func (s *UserService) find(ctx context.Context, username string) (entity.User, error) {
	u, ok, err := s.Users.FindByKey(ctx, username)
	if err != nil {
		return entity.User{}, fmt.Errorf("find user %s: %w", username, err)
	}
	if !ok {
		return entity.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return u, nil
}

// verified loads the user and checks password. Both failures are ErrBadCredentials.
func (s *UserService) verified(ctx context.Context, username, password string) (entity.User, error) {
	u, ok, err := s.Users.FindByKey(ctx, username)
	if err != nil {
		return entity.User{}, fmt.Errorf("find user %s: %w", username, err)
	}
	if !ok {
		s.Hasher.Verify(s.dummy(), password)
		return entity.User{}, ErrBadCredentials
	}
	if !s.Hasher.Verify(u.Password, password) {
		return entity.User{}, ErrBadCredentials
	}
	return u, nil
}

// dummy returns the hash compared against for unknown users. A failed Hash is not
// cached; the next call tries again.
func (s *UserService) dummy() string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash != "" {
		return s.dummyHash
	}
	h, err := s.Hasher.Hash(uuid.NewString())
	if err != nil || h == "" {
		s.Logger.WithError(err).Warn("dummy password hash unavailable, using fallback")
		return fallbackDummyHash
	}
	s.dummyHash = h
	return h
}

func (s *UserService) publish(ctx context.Context, typ, username string, isbns []string) {
	if s.Events == nil {
		return
	}
	ev := ActivityEvent{Type: typ, Username: username, ISBNs: isbns, At: time.Now().UTC()}
	if err := s.Events.PublishJSON(ctx, ev); err != nil {
		s.Logger.WithError(err).WithField("type", typ).Warn("activity publish failed")
	}
}
