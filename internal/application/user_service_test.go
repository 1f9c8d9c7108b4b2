package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
	"github.com/Melih7342/bookmanager/internal/domain/repository/mocks"
	"github.com/Melih7342/bookmanager/internal/infrastructure/memory"
	"github.com/Melih7342/bookmanager/pkg/helpers"
)

type userFixture struct {
	svc   *UserService
	books *BookService
	users *memory.UserRepository
	pub   *recordingPublisher
}

func newUserFixture(t *testing.T, books ...entity.Book) userFixture {
	t.Helper()
	users := memory.NewUserRepository()
	bookRepo := memory.NewBookRepository()
	for _, b := range books {
		require.NoError(t, bookRepo.Save(context.Background(), b))
	}
	pub := &recordingPublisher{}
	return userFixture{
		svc:   NewUserService(users, bookRepo, helpers.NewBcryptHasher(bcrypt.MinCost), pub, nil),
		books: NewBookService(bookRepo, nil, nil, nil),
		users: users,
		pub:   pub,
	}
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	p, err := f.svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, entity.RoleReader, p.Role)
	assert.NotEmpty(t, p.ID)
	assert.Empty(t, p.CurrentlyReading)
	assert.Empty(t, p.ReadBooks)

	stored, ok, err := f.users.FindByKey(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, "secret123", stored.Password)
	assert.Equal(t, entity.StatusActive, stored.Status)

	got, err := f.svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

// flakyHasher fails the first failures calls to Hash and records the hashes Verify sees.
type flakyHasher struct {
	helpers.BcryptHasher
	failures int
	verified []string
}

func (h *flakyHasher) Hash(plain string) (string, error) {
	if h.failures > 0 {
		h.failures--
		return "", errors.New("entropy exhausted")
	}
	return h.BcryptHasher.Hash(plain)
}

func (h *flakyHasher) Verify(hash, plain string) bool {
	h.verified = append(h.verified, hash)
	return h.BcryptHasher.Verify(hash, plain)
}

func TestUserService_Login_UnknownUserDummyHashRetries(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := &flakyHasher{BcryptHasher: helpers.NewBcryptHasher(bcrypt.MinCost), failures: 1}
	svc := NewUserService(memory.NewUserRepository(), memory.NewBookRepository(), h, nil, logger)
	ctx := context.Background()

	_, err := svc.Login(ctx, "ghost", "secret123")
	assert.ErrorIs(t, err, ErrBadCredentials)
	require.Len(t, h.verified, 1)
	assert.Equal(t, fallbackDummyHash, h.verified[0])
	cost, err := bcrypt.Cost([]byte(fallbackDummyHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	// The failure was not cached: the next unknown login gets a real per-service hash.
	_, err = svc.Login(ctx, "ghost", "secret123")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = svc.Login(ctx, "phantom", "secret123")
	assert.ErrorIs(t, err, ErrBadCredentials)
	require.Len(t, h.verified, 3)
	assert.NotEmpty(t, h.verified[1])
	assert.NotEqual(t, fallbackDummyHash, h.verified[1])
	assert.Equal(t, h.verified[1], h.verified[2])
	assert.Len(t, hook.AllEntries(), 1)
}

func TestUserService_Register_UsernameTaken(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "alice", "different9")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// Keys are case sensitive.
	_, err = f.svc.Register(ctx, "Alice", "secret123")
	assert.NoError(t, err)
}

func TestUserService_RegisterWithRole(t *testing.T) {
	f := newUserFixture(t)

	p, err := f.svc.RegisterWithRole(context.Background(), "root", "secret123", entity.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, p.Role)

	_, err = f.svc.RegisterWithRole(context.Background(), "ghost", "secret123", entity.RoleNone)
	assert.Error(t, err)
}

func TestUserService_Register_Concurrent(t *testing.T) {
	f := newUserFixture(t)
	const workers = 16
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(context.Background(), "bob", "secret123")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrUsernameTaken)
	}
	assert.Equal(t, 1, ok)
}

func TestUserService_Login(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice", "secret123")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid", "alice", "secret123", nil},
		{"wrong password", "alice", "nope12345", ErrBadCredentials},
		{"unknown user", "nobody", "secret123", ErrBadCredentials},
		{"case differs", "ALICE", "secret123", ErrBadCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(ctx, tt.username, tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUserService_Deactivate(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "bob", "secret123")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeactivateAccount(ctx, "bob", "wrongpass1"), ErrBadCredentials)
	assert.ErrorIs(t, f.svc.DeactivateAccount(ctx, "nobody", "secret123"), ErrBadCredentials)

	require.NoError(t, f.svc.DeactivateAccount(ctx, "bob", "secret123"))

	_, err = f.svc.Login(ctx, "bob", "secret123")
	assert.ErrorIs(t, err, ErrDisabledAccount)

	_, err = f.svc.Login(ctx, "bob", "wrongpass1")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = f.svc.Principal(ctx, "bob", 0)
	assert.ErrorIs(t, err, ErrDisabledAccount)

	// The record survives and the name stays taken.
	_, err = f.svc.GetProfile(ctx, "bob")
	assert.NoError(t, err)
	_, err = f.svc.Register(ctx, "bob", "secret123")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUserService_ChangePassword(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "carol", "oldpass11")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, "carol", "wrongpass1", "newpass22"), ErrBadCredentials)
	assert.ErrorIs(t, f.svc.ChangePassword(ctx, "nobody", "oldpass11", "newpass22"), ErrBadCredentials)

	require.NoError(t, f.svc.ChangePassword(ctx, "carol", "oldpass11", "newpass22"))

	_, err = f.svc.Login(ctx, "carol", "oldpass11")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = f.svc.Login(ctx, "carol", "newpass22")
	assert.NoError(t, err)

	assert.Equal(t, []string{EventUserRegistered, EventPasswordChanged}, f.pub.types())
}

func TestUserService_ChangePassword_RevokesTokens(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "erin", "oldpass11")
	require.NoError(t, err)

	p, err := f.svc.Login(ctx, "erin", "oldpass11")
	require.NoError(t, err)
	issued := p.CredentialVersion
	_, err = f.svc.Principal(ctx, "erin", issued)
	require.NoError(t, err)

	require.NoError(t, f.svc.ChangePassword(ctx, "erin", "oldpass11", "newpass22"))

	_, err = f.svc.Principal(ctx, "erin", issued)
	assert.ErrorIs(t, err, ErrBadCredentials)

	p, err = f.svc.Login(ctx, "erin", "newpass22")
	require.NoError(t, err)
	assert.Greater(t, p.CredentialVersion, issued)
	_, err = f.svc.Principal(ctx, "erin", p.CredentialVersion)
	assert.NoError(t, err)

	_, err = f.svc.Principal(ctx, "nobody", 0)
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestUserService_ChangePassword_DisabledAccount(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "dave", "oldpass11")
	require.NoError(t, err)
	require.NoError(t, f.svc.DeactivateAccount(ctx, "dave", "oldpass11"))

	require.NoError(t, f.svc.ChangePassword(ctx, "dave", "oldpass11", "newpass22"))

	_, err = f.svc.Login(ctx, "dave", "newpass22")
	assert.ErrorIs(t, err, ErrDisabledAccount)
}

func TestUserService_GetProfile_NotFound(t *testing.T) {
	f := newUserFixture(t)

	_, err := f.svc.GetProfile(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserService_ReadingLists(t *testing.T) {
	b1 := entity.Book{ISBN: "B1", Title: "One"}
	b2 := entity.Book{ISBN: "B2", Title: "Two"}
	f := newUserFixture(t, b1, b2)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "reader", "secret123")
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkAsCurrentlyReading(ctx, "reader", "B1"))
	require.NoError(t, f.svc.MarkAsCurrentlyReading(ctx, "reader", "B1"))
	require.NoError(t, f.svc.MarkAsCurrentlyReading(ctx, "reader", "B2"))

	p, err := f.svc.GetProfile(ctx, "reader")
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B2"}, p.CurrentlyReading)
	assert.Empty(t, p.ReadBooks)

	require.NoError(t, f.svc.MarkAsRead(ctx, "reader", "B1"))
	require.NoError(t, f.svc.MarkAsRead(ctx, "reader", "B1"))

	p, err = f.svc.GetProfile(ctx, "reader")
	require.NoError(t, err)
	assert.Equal(t, []string{"B2"}, p.CurrentlyReading)
	assert.Equal(t, []string{"B1"}, p.ReadBooks)

	reading, err := f.svc.ReadingList(ctx, "reader", CurrentlyReading)
	require.NoError(t, err)
	assert.Equal(t, []entity.Book{b2}, reading)

	read, err := f.svc.ReadingList(ctx, "reader", Read)
	require.NoError(t, err)
	assert.Equal(t, []entity.Book{b1}, read)
}

func TestUserService_MarkAsRead_WithoutStarting(t *testing.T) {
	f := newUserFixture(t, entity.Book{ISBN: "B1"})
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "reader", "secret123")
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkAsRead(ctx, "reader", "B1"))

	p, err := f.svc.GetProfile(ctx, "reader")
	require.NoError(t, err)
	assert.Empty(t, p.CurrentlyReading)
	assert.Equal(t, []string{"B1"}, p.ReadBooks)

	// Starting a finished book again moves it back to currently reading.
	require.NoError(t, f.svc.MarkAsCurrentlyReading(ctx, "reader", "B1"))
	p, err = f.svc.GetProfile(ctx, "reader")
	require.NoError(t, err)
	assert.Equal(t, []string{"B1"}, p.CurrentlyReading)
	assert.Empty(t, p.ReadBooks)

	require.NoError(t, f.svc.MarkAsRead(ctx, "reader", "B1"))
	p, err = f.svc.GetProfile(ctx, "reader")
	require.NoError(t, err)
	assert.Empty(t, p.CurrentlyReading)
	assert.Equal(t, []string{"B1"}, p.ReadBooks)
}

func TestUserService_Mark_NotFound(t *testing.T) {
	f := newUserFixture(t, entity.Book{ISBN: "B1"})
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "reader", "secret123")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.MarkAsCurrentlyReading(ctx, "reader", "missing"), ErrBookNotFound)
	assert.ErrorIs(t, f.svc.MarkAsRead(ctx, "reader", "missing"), ErrBookNotFound)
	assert.ErrorIs(t, f.svc.MarkAsCurrentlyReading(ctx, "nobody", "B1"), ErrUserNotFound)
	assert.ErrorIs(t, f.svc.MarkAsRead(ctx, "nobody", "B1"), ErrUserNotFound)

	p, err := f.svc.GetProfile(ctx, "reader")
	require.NoError(t, err)
	assert.Empty(t, p.CurrentlyReading)
	assert.Empty(t, p.ReadBooks)
}

func TestUserService_RemovedBookStaysReferenced(t *testing.T) {
	f := newUserFixture(t, entity.Book{ISBN: "B1"}, entity.Book{ISBN: "B2"})
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "reader", "secret123")
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkAsCurrentlyReading(ctx, "reader", "B1"))
	require.NoError(t, f.svc.MarkAsCurrentlyReading(ctx, "reader", "B2"))

	require.NoError(t, f.books.Remove(ctx, "B1"))

	p, err := f.svc.GetProfile(ctx, "reader")
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B2"}, p.CurrentlyReading)

	resolved, err := f.svc.ReadingList(ctx, "reader", CurrentlyReading)
	require.NoError(t, err)
	assert.Equal(t, []entity.Book{{ISBN: "B2"}}, resolved)

	assert.ErrorIs(t, f.svc.MarkAsRead(ctx, "reader", "B1"), ErrBookNotFound)
}

func TestUserService_ConcurrentMarksKeepEveryEntry(t *testing.T) {
	const n = 24
	books := make([]entity.Book, 0, n)
	for i := 0; i < n; i++ {
		books = append(books, entity.Book{ISBN: fmt.Sprintf("B%02d", i)})
	}
	f := newUserFixture(t, books...)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "reader", "secret123")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, b := range books {
		wg.Add(1)
		go func(isbn string) {
			defer wg.Done()
			assert.NoError(t, f.svc.MarkAsCurrentlyReading(ctx, "reader", isbn))
		}(b.ISBN)
	}
	wg.Wait()

	p, err := f.svc.GetProfile(ctx, "reader")
	require.NoError(t, err)
	assert.Len(t, p.CurrentlyReading, n)
	assert.Zero(t, f.svc.locks.size())
}

func TestUserService_StoreFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	books := mocks.NewMockBookRepository(ctrl)
	svc := NewUserService(users, books, helpers.NewBcryptHasher(bcrypt.MinCost), nil, nil)
	storeErr := errors.New("store unavailable")
	ctx := context.Background()

	users.EXPECT().FindByKey(gomock.Any(), "alice").Return(entity.User{}, false, storeErr)
	_, err := svc.Login(ctx, "alice", "secret123")
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrBadCredentials)

	users.EXPECT().ExistsByKey(gomock.Any(), "alice").Return(false, nil)
	users.EXPECT().Save(gomock.Any(), gomock.Any()).Return(storeErr)
	_, err = svc.Register(ctx, "alice", "secret123")
	assert.ErrorIs(t, err, storeErr)

	users.EXPECT().FindByKey(gomock.Any(), "alice").Return(entity.User{Username: "alice"}, true, nil)
	books.EXPECT().ExistsByKey(gomock.Any(), "B1").Return(false, storeErr)
	err = svc.MarkAsRead(ctx, "alice", "B1")
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrNotFound)
}
