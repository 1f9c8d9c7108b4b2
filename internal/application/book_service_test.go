package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
	"github.com/Melih7342/bookmanager/internal/domain/repository/mocks"
	"github.com/Melih7342/bookmanager/internal/infrastructure/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (p *recordingPublisher) PublishJSON(_ context.Context, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, body.(ActivityEvent))
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeIndex struct {
	indexed []string
	removed []string
	hits    []entity.Book
	err     error
}

func (f *fakeIndex) Index(_ context.Context, books ...entity.Book) error {
	for _, b := range books {
		f.indexed = append(f.indexed, b.ISBN)
	}
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, isbns ...string) error {
	f.removed = append(f.removed, isbns...)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ string, _ int) ([]entity.Book, error) {
	return f.hits, f.err
}

func newBookFixture(t *testing.T, seed ...entity.Book) (*BookService, *memory.BookRepository) {
	t.Helper()
	repo := memory.NewBookRepository()
	for _, b := range seed {
		require.NoError(t, repo.Save(context.Background(), b))
	}
	return NewBookService(repo, nil, nil, nil), repo
}

func snapshot(t *testing.T, repo *memory.BookRepository) []entity.Book {
	t.Helper()
	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	return all
}

var (
	bookA = entity.Book{ISBN: "978-1", Title: "A", Author: "B", Pages: 100}
	bookB = entity.Book{ISBN: "978-2", Title: "Second", Author: "Someone", Pages: 250}
	bookC = entity.Book{ISBN: "978-3", Title: "Third", Author: "Other", Pages: 0}
)

func TestBookService_AddThenGet(t *testing.T) {
	svc, _ := newBookFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, bookA))

	got, err := svc.GetByKey(ctx, "978-1")
	require.NoError(t, err)
	assert.Equal(t, bookA, got)
}

func TestBookService_GetByKey_NotFound(t *testing.T) {
	svc, _ := newBookFixture(t)

	_, err := svc.GetByKey(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookService_ListAll_Empty(t *testing.T) {
	svc, _ := newBookFixture(t)

	books, err := svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, books)
	assert.Empty(t, books)
}

func TestBookService_Add_Uniqueness(t *testing.T) {
	svc, repo := newBookFixture(t)
	ctx := context.Background()
	require.NoError(t, svc.Add(ctx, bookA))

	variants := []entity.Book{
		bookA,
		{ISBN: bookA.ISBN, Title: "Other title"},
		{ISBN: bookA.ISBN, Title: "X", Author: "Y", Pages: 1},
	}
	for _, v := range variants {
		err := svc.Add(ctx, v)
		assert.ErrorIs(t, err, ErrBookAlreadyExists)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	}
	assert.Equal(t, []entity.Book{bookA}, snapshot(t, repo))
}

func TestBookService_AddBulk(t *testing.T) {
	tests := []struct {
		name    string
		seed    []entity.Book
		batch   []entity.Book
		wantErr error
	}{
		{"all new", nil, []entity.Book{bookA, bookB, bookC}, nil},
		{"one collides with store", []entity.Book{bookB}, []entity.Book{bookA, bookB, bookC}, ErrBookAlreadyExists},
		{"last collides with store", []entity.Book{bookC}, []entity.Book{bookA, bookB, bookC}, ErrBookAlreadyExists},
		{"duplicate inside batch", nil, []entity.Book{{ISBN: "1", Title: "x"}, {ISBN: "1", Title: "y"}}, ErrBookAlreadyExists},
		{"duplicate inside batch after others", []entity.Book{bookC}, []entity.Book{bookA, bookB, bookA}, ErrBookAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newBookFixture(t, tt.seed...)
			before := snapshot(t, repo)

			err := svc.AddBulk(context.Background(), tt.batch)

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Len(t, snapshot(t, repo), len(tt.seed)+len(tt.batch))
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, snapshot(t, repo))
		})
	}
}

func TestBookService_AddBulk_DuplicateInBatchStoresNothing(t *testing.T) {
	svc, repo := newBookFixture(t)

	err := svc.AddBulk(context.Background(), []entity.Book{
		{ISBN: "1", Title: "first"},
		{ISBN: "1", Title: "second"},
	})

	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Empty(t, snapshot(t, repo))
}

func TestBookService_Remove(t *testing.T) {
	svc, repo := newBookFixture(t, bookA)
	ctx := context.Background()

	require.NoError(t, svc.Remove(ctx, bookA.ISBN))
	assert.Empty(t, snapshot(t, repo))

	assert.ErrorIs(t, svc.Remove(ctx, bookA.ISBN), ErrBookNotFound)
}

func TestBookService_RemoveBulk(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		wantErr error
		left    int
	}{
		{"all exist", []string{bookA.ISBN, bookC.ISBN}, nil, 1},
		{"one missing", []string{bookA.ISBN, "missing", bookC.ISBN}, ErrBookNotFound, 3},
		{"repeated key", []string{bookA.ISBN, bookA.ISBN}, ErrBookNotFound, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newBookFixture(t, bookA, bookB, bookC)
			before := snapshot(t, repo)

			err := svc.RemoveBulk(context.Background(), tt.keys)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, snapshot(t, repo))
				return
			}
			require.NoError(t, err)
			assert.Len(t, snapshot(t, repo), tt.left)
		})
	}
}

func TestBookService_Update_RoundTrip(t *testing.T) {
	svc, _ := newBookFixture(t, bookA)
	ctx := context.Background()

	changed := entity.Book{ISBN: bookA.ISBN, Title: "New title", Author: "New author", Pages: 321}
	require.NoError(t, svc.Update(ctx, changed))

	got, err := svc.GetByKey(ctx, bookA.ISBN)
	require.NoError(t, err)
	assert.Equal(t, changed, got)
}

func TestBookService_Update_NotFound(t *testing.T) {
	svc, repo := newBookFixture(t)

	err := svc.Update(context.Background(), bookA)
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.Empty(t, snapshot(t, repo))
}

func TestBookService_UpdateBulk_Atomic(t *testing.T) {
	svc, repo := newBookFixture(t, bookA, bookB)
	before := snapshot(t, repo)

	err := svc.UpdateBulk(context.Background(), []entity.Book{
		{ISBN: bookA.ISBN, Title: "changed"},
		{ISBN: bookC.ISBN, Title: "missing"},
	})

	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.Equal(t, before, snapshot(t, repo))
}

func TestBookService_EmptyBatches(t *testing.T) {
	svc, repo := newBookFixture(t, bookA)
	ctx := context.Background()

	assert.NoError(t, svc.AddBulk(ctx, nil))
	assert.NoError(t, svc.RemoveBulk(ctx, []string{}))
	assert.NoError(t, svc.UpdateBulk(ctx, nil))
	assert.Equal(t, []entity.Book{bookA}, snapshot(t, repo))
}

func TestBookService_AddBulk_RevertsOnWriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockBookRepository(ctrl)
	svc := NewBookService(repo, nil, nil, nil)
	saveErr := errors.New("connection reset")

	repo.EXPECT().ExistsByKey(gomock.Any(), gomock.Any()).Return(false, nil).Times(3)
	gomock.InOrder(
		repo.EXPECT().Save(gomock.Any(), bookA).Return(nil),
		repo.EXPECT().Save(gomock.Any(), bookB).Return(nil),
		repo.EXPECT().Save(gomock.Any(), bookC).Return(saveErr),
		repo.EXPECT().Delete(gomock.Any(), bookB.ISBN).Return(nil),
		repo.EXPECT().Delete(gomock.Any(), bookA.ISBN).Return(nil),
	)

	err := svc.AddBulk(context.Background(), []entity.Book{bookA, bookB, bookC})
	assert.ErrorIs(t, err, saveErr)
}

func TestBookService_RemoveBulk_RevertsOnWriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockBookRepository(ctrl)
	svc := NewBookService(repo, nil, nil, nil)
	delErr := errors.New("disk full")

	repo.EXPECT().FindByKey(gomock.Any(), bookA.ISBN).Return(bookA, true, nil)
	repo.EXPECT().FindByKey(gomock.Any(), bookB.ISBN).Return(bookB, true, nil)
	gomock.InOrder(
		repo.EXPECT().Delete(gomock.Any(), bookA.ISBN).Return(nil),
		repo.EXPECT().Delete(gomock.Any(), bookB.ISBN).Return(delErr),
		repo.EXPECT().Save(gomock.Any(), bookA).Return(nil),
	)

	err := svc.RemoveBulk(context.Background(), []string{bookA.ISBN, bookB.ISBN})
	assert.ErrorIs(t, err, delErr)
}

func TestBookService_UpdateBulk_RevertsOnWriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockBookRepository(ctrl)
	svc := NewBookService(repo, nil, nil, nil)
	saveErr := errors.New("timeout")
	newA := entity.Book{ISBN: bookA.ISBN, Title: "new"}
	newB := entity.Book{ISBN: bookB.ISBN, Title: "new"}

	repo.EXPECT().FindByKey(gomock.Any(), bookA.ISBN).Return(bookA, true, nil)
	repo.EXPECT().FindByKey(gomock.Any(), bookB.ISBN).Return(bookB, true, nil)
	gomock.InOrder(
		repo.EXPECT().Save(gomock.Any(), newA).Return(nil),
		repo.EXPECT().Save(gomock.Any(), newB).Return(saveErr),
		repo.EXPECT().Save(gomock.Any(), bookA).Return(nil),
	)

	err := svc.UpdateBulk(context.Background(), []entity.Book{newA, newB})
	assert.ErrorIs(t, err, saveErr)
}

func TestBookService_StoreErrorDuringValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockBookRepository(ctrl)
	svc := NewBookService(repo, nil, nil, nil)
	storeErr := errors.New("store unavailable")

	repo.EXPECT().ExistsByKey(gomock.Any(), bookA.ISBN).Return(false, storeErr)

	err := svc.Add(context.Background(), bookA)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrAlreadyExists)
}

func TestBookService_ConcurrentBulkAddsOnSharedKey(t *testing.T) {
	svc, repo := newBookFixture(t)
	const workers = 32
	var wins atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			batch := []entity.Book{
				{ISBN: fmt.Sprintf("own-%02d", i)},
				{ISBN: "shared"},
			}
			if err := svc.AddBulk(context.Background(), batch); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrBookAlreadyExists)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Len(t, snapshot(t, repo), 2)
	assert.Zero(t, svc.locks.size())
}

func TestBookService_NotifiesIndexAndPublisher(t *testing.T) {
	repo := memory.NewBookRepository()
	idx := &fakeIndex{}
	pub := &recordingPublisher{}
	svc := NewBookService(repo, idx, pub, nil)
	ctx := context.Background()

	require.NoError(t, svc.AddBulk(ctx, []entity.Book{bookA, bookB}))
	require.NoError(t, svc.Update(ctx, entity.Book{ISBN: bookA.ISBN, Title: "x"}))
	require.NoError(t, svc.Remove(ctx, bookB.ISBN))
	assert.Error(t, svc.Add(ctx, bookA))

	assert.Equal(t, []string{bookA.ISBN, bookB.ISBN, bookA.ISBN}, idx.indexed)
	assert.Equal(t, []string{bookB.ISBN}, idx.removed)
	assert.Equal(t, []string{EventBooksAdded, EventBooksUpdated, EventBooksRemoved}, pub.types())
}

func TestBookService_Search(t *testing.T) {
	t.Run("scans store without index", func(t *testing.T) {
		svc, _ := newBookFixture(t, bookA, bookB, bookC)

		got, err := svc.Search(context.Background(), "some", 10)
		require.NoError(t, err)
		assert.Equal(t, []entity.Book{bookB}, got)
	})

	t.Run("blank query", func(t *testing.T) {
		svc, _ := newBookFixture(t, bookA)

		got, err := svc.Search(context.Background(), "  ", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("uses index", func(t *testing.T) {
		idx := &fakeIndex{hits: []entity.Book{bookC}}
		svc := NewBookService(memory.NewBookRepository(), idx, nil, nil)

		got, err := svc.Search(context.Background(), "anything", 5)
		require.NoError(t, err)
		assert.Equal(t, []entity.Book{bookC}, got)
	})

	t.Run("falls back when index fails", func(t *testing.T) {
		repo := memory.NewBookRepository()
		require.NoError(t, repo.Save(context.Background(), bookA))
		svc := NewBookService(repo, &fakeIndex{err: errors.New("es down")}, nil, nil)

		got, err := svc.Search(context.Background(), "a", 5)
		require.NoError(t, err)
		assert.Equal(t, []entity.Book{bookA}, got)
	})
}
