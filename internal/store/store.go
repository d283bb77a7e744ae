// Package store defines the persistence contract shared by the user
// directory and the event ledger, plus the record types both sides exchange.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is wrapped around every driver failure: an unreachable
// backend as well as a failed read or write.
var ErrUnavailable = errors.New("store unavailable")

// Collection names, shared by all drivers.
const (
	CollectionUsers  = "users"
	CollectionEvents = "events"
)

// User is a chat identity captured on first contact.
type User struct {
	TgID      int64     `bson:"tgId" json:"tgId"`
	FirstName string    `bson:"firstName" json:"firstName"`
	LastName  string    `bson:"lastName,omitempty" json:"lastName,omitempty"`
	IsBot     bool      `bson:"isBot" json:"isBot"`
	Username  string    `bson:"username,omitempty" json:"username,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Event is one free-text note. ID is assigned by the driver.
type Event struct {
	ID        string    `bson:"-" json:"id"`
	TgID      int64     `bson:"tgId" json:"tgId"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// EventFilter selects one owner's events with From <= createdAt <= To.
type EventFilter struct {
	TgID int64
	From time.Time
	To   time.Time
}

type Store interface {
	// UpsertUser inserts u when no user with u.TgID exists and returns the
	// stored record. An existing record is returned untouched.
	UpsertUser(ctx context.Context, u User) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	InsertEvent(ctx context.Context, e Event) (Event, error)
	FindEvents(ctx context.Context, f EventFilter) ([]Event, error)
	CountEvents(ctx context.Context, f EventFilter) (int64, error)
	DeleteEvents(ctx context.Context, f EventFilter) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Unavailable wraps err as ErrUnavailable, keeping the operation name and
// the driver error in the message.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
