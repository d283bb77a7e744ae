// Package ledger holds the two stateless components of the bot core: the
// user directory and the per-user daily event ledger. Both delegate all
// persistence to a store.Store and surface its errors unchanged.
package ledger

import (
	"context"
	"time"

	"github.com/stellarlinkco/daypost/internal/store"
)

// Clock supplies the current time. Tests pin it.
type Clock func() time.Time

type Ledger struct {
	store store.Store
	loc   *time.Location
	now   Clock
}

type Option func(*Ledger)

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		if c != nil {
			l.now = c
		}
	}
}

// New builds a ledger whose days are calendar days in loc. A nil loc means
// time.Local.
func New(s store.Store, loc *time.Location, opts ...Option) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	l := &Ledger{store: s, loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Location() *time.Location { return l.loc }

// Now is the ledger clock's current time in the ledger location.
func (l *Ledger) Now() time.Time { return l.now().In(l.loc) }

// Record appends text for ownerID, stamped with the current time at
// millisecond precision. Text is stored exactly as given.
func (l *Ledger) Record(ctx context.Context, ownerID int64, text string) (store.Event, error) {
	return l.store.InsertEvent(ctx, store.Event{
		TgID:      ownerID,
		Text:      text,
		CreatedAt: l.now().Truncate(time.Millisecond),
	})
}

// ListForDay returns ownerID's events created during day's calendar day, in
// storage order. A zero day means today.
func (l *Ledger) ListForDay(ctx context.Context, ownerID int64, day time.Time) ([]store.Event, error) {
	return l.store.FindEvents(ctx, l.filter(ownerID, day))
}

func (l *Ledger) CountForDay(ctx context.Context, ownerID int64, day time.Time) (int64, error) {
	return l.store.CountEvents(ctx, l.filter(ownerID, day))
}

// DeleteForDay removes ownerID's events for day and reports how many went.
func (l *Ledger) DeleteForDay(ctx context.Context, ownerID int64, day time.Time) (int64, error) {
	return l.store.DeleteEvents(ctx, l.filter(ownerID, day))
}

// filter recomputes the day window on every call.
func (l *Ledger) filter(ownerID int64, day time.Time) store.EventFilter {
	if day.IsZero() {
		day = l.now()
	}
	from, to := DayBounds(day, l.loc)
	return store.EventFilter{TgID: ownerID, From: from, To: to}
}
