package application

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors wrap a kind so callers can match either.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	ErrBookNotFound      = fmt.Errorf("book %w", ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("user %w", ErrNotFound)
	ErrBookAlreadyExists = fmt.Errorf("book %w", ErrAlreadyExists)
	ErrUsernameTaken     = fmt.Errorf("username %w", ErrAlreadyExists)

	// ErrBadCredentials is deliberately vague: unknown user and wrong password look the same.
	ErrBadCredentials  = errors.New("invalid username or password")
	ErrDisabledAccount = errors.New("account is disabled")
)
