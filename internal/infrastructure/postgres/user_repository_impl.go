package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
	"github.com/Melih7342/bookmanager/internal/domain/repository"
)

// UserRepository keeps the account row in users and each reading list in its own
// table, ordered by position.
type UserRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository(pool *pgxpool.Pool, timeout time.Duration) *UserRepository {
	return &UserRepository{pool: pool, timeout: timeout}
}

var listTables = [...]string{"user_currently_reading", "user_read_books"}

func (r *UserRepository) FindByKey(ctx context.Context, username string) (entity.User, bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var u entity.User
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, username, password_hash, role, status, credential_version
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.Status, &u.CredentialVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.User{}, false, nil
	}
	if err != nil {
		return entity.User{}, false, err
	}

	lists, err := r.loadLists(ctx, `WHERE username = $1`, username)
	if err != nil {
		return entity.User{}, false, err
	}
	u.CurrentlyReading = lists[0][username]
	u.ReadBooks = lists[1][username]
	return u, true, nil
}

func (r *UserRepository) FindAll(ctx context.Context) ([]entity.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, username, password_hash, role, status, credential_version
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.User, error) {
		var u entity.User
		err := row.Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.Status, &u.CredentialVersion)
		return u, err
	})
	if err != nil {
		return nil, err
	}

	lists, err := r.loadLists(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].CurrentlyReading = lists[0][users[i].Username]
		users[i].ReadBooks = lists[1][users[i].Username]
	}
	return users, nil
}

// loadLists returns one username->isbns map per entry of listTables.
func (r *UserRepository) loadLists(ctx context.Context, where string, args ...any) ([2]map[string][]string, error) {
	var out [2]map[string][]string
	for i, table := range listTables {
		rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT username, isbn FROM %s %s ORDER BY username, position`, table, where), args...)
		if err != nil {
			return out, err
		}
		m := make(map[string][]string)
		for rows.Next() {
			var username, isbn string
			if err := rows.Scan(&username, &isbn); err != nil {
				rows.Close()
				return out, err
			}
			m[username] = append(m[username], isbn)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return out, err
		}
		out[i] = m
	}
	return out, nil
}

func (r *UserRepository) ExistsByKey(ctx context.Context, username string) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// Save upserts the account row and rewrites both reading lists in one transaction.
func (r *UserRepository) Save(ctx context.Context, u entity.User) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO users (username, id, password_hash, role, status, credential_version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			credential_version = EXCLUDED.credential_version,
			updated_at = now()
	`, u.Username, u.ID, u.Password, string(u.Role), string(u.Status), u.CredentialVersion)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	batch := &pgx.Batch{}
	for i, list := range [...][]string{u.CurrentlyReading, u.ReadBooks} {
		table := listTables[i]
		batch.Queue(fmt.Sprintf(`DELETE FROM %s WHERE username = $1`, table), u.Username)
		for pos, isbn := range list {
			batch.Queue(fmt.Sprintf(`INSERT INTO %s (username, isbn, position) VALUES ($1, $2, $3)`, table), u.Username, isbn, pos)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write reading lists: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *UserRepository) Delete(ctx context.Context, username string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	return err
}
