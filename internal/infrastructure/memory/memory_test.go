package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
)

func TestBookRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBookRepository()

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, repo.Save(ctx, entity.Book{ISBN: "2", Title: "B"}))
	require.NoError(t, repo.Save(ctx, entity.Book{ISBN: "1", Title: "A"}))

	b, ok, err := repo.FindByKey(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A", b.Title)

	_, ok, err = repo.FindByKey(ctx, "3")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err = repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].ISBN)

	require.NoError(t, repo.Save(ctx, entity.Book{ISBN: "1", Title: "A2"}))
	b, _, _ = repo.FindByKey(ctx, "1")
	assert.Equal(t, "A2", b.Title)

	require.NoError(t, repo.Delete(ctx, "1"))
	exists, err := repo.ExistsByKey(ctx, "1")
	require.NoError(t, err)
	assert.False(t, exists)

	// deleting a missing key is not an error for the store
	assert.NoError(t, repo.Delete(ctx, "missing"))
}

func TestUserRepository_CopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	u := entity.User{Username: "alice", CurrentlyReading: []string{"978-1"}}
	require.NoError(t, repo.Save(ctx, u))
	u.CurrentlyReading[0] = "mutated"

	got, ok, err := repo.FindByKey(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"978-1"}, got.CurrentlyReading)

	got.CurrentlyReading[0] = "mutated again"
	again, _, _ := repo.FindByKey(ctx, "alice")
	assert.Equal(t, []string{"978-1"}, again.CurrentlyReading)
}

func TestUserRepository_CaseSensitiveKeys(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	require.NoError(t, repo.Save(ctx, entity.User{Username: "alice"}))

	exists, err := repo.ExistsByKey(ctx, "Alice")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBookRepository_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewBookRepository()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = repo.Save(ctx, entity.Book{ISBN: fmt.Sprintf("isbn-%d", i)})
		}(i)
	}
	wg.Wait()

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 50)
}
