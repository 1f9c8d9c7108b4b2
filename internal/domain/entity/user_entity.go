package entity

import "slices"

// AccountStatus is the lifecycle state of an account.
// Disabled accounts keep their record but can no longer log in.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusDisabled AccountStatus = "disabled"
)

// User is the aggregate root for the user domain.
// Password holds a bcrypt hash, never the plain text.
// CurrentlyReading and ReadBooks hold book ISBNs.
// CredentialVersion grows with every password change; access tokens carry the
// version they were issued under.
type User struct {
	ID                string
	Username          string
	Password          string
	Role              Role
	Status            AccountStatus
	CredentialVersion int
	CurrentlyReading  []string
	ReadBooks         []string
}

func (u User) Active() bool { return u.Status == StatusActive }

// Clone returns a copy that shares no slices with u.
func (u User) Clone() User {
	u.CurrentlyReading = slices.Clone(u.CurrentlyReading)
	u.ReadBooks = slices.Clone(u.ReadBooks)
	return u
}

// StartReading appends isbn to the currently-reading list. Adding a present entry is a no-op.
// Starting a book that was already read is a re-read: it leaves the read list.
func (u *User) StartReading(isbn string) {
	if !slices.Contains(u.CurrentlyReading, isbn) {
		u.CurrentlyReading = append(u.CurrentlyReading, isbn)
	}
	u.ReadBooks = slices.DeleteFunc(u.ReadBooks, func(s string) bool { return s == isbn })
}

// FinishReading moves isbn to the read list, dropping it from currently-reading if present.
func (u *User) FinishReading(isbn string) {
	if !slices.Contains(u.ReadBooks, isbn) {
		u.ReadBooks = append(u.ReadBooks, isbn)
	}
	u.CurrentlyReading = slices.DeleteFunc(u.CurrentlyReading, func(s string) bool { return s == isbn })
}
