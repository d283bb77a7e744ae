package ledger

import (
	"context"

	"github.com/stellarlinkco/daypost/internal/store"
)

// Identity is what the transport knows about a sender on first contact.
type Identity struct {
	ID        int64
	FirstName string
	LastName  string
	IsBot     bool
	Username  string
}

type Directory struct {
	store store.Store
}

func NewDirectory(s store.Store) *Directory {
	return &Directory{store: s}
}

// EnsureUser creates the user for id on first contact and otherwise returns
// the stored record untouched.
func (d *Directory) EnsureUser(ctx context.Context, id Identity) (store.User, error) {
	return d.store.UpsertUser(ctx, store.User{
		TgID:      id.ID,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		IsBot:     id.IsBot,
		Username:  id.Username,
	})
}

func (d *Directory) Users(ctx context.Context) ([]store.User, error) {
	return d.store.ListUsers(ctx)
}
