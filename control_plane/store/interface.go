package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUserExists is returned by CreateUser on a duplicate username.
	ErrUserExists = errors.New("username already registered")
	// ErrUserNotFound is returned when a username is unknown.
	ErrUserNotFound = errors.New("user does not exist")
	// ErrPileNotFound is returned when a pile id is unknown.
	ErrPileNotFound = errors.New("pile does not exist")
)

// Store defines the durable storage backend for accounts, piles and orders.
// It abstracts over Postgres (production) and memory (tests, dev mode).
type Store interface {
	// User Operations
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, username string) (*User, error) // nil, nil when absent
	SetAdmin(ctx context.Context, username string) error

	// Pile Operations
	ListPiles(ctx context.Context) ([]*Pile, error)
	GetPile(ctx context.Context, pileID int) (*Pile, error)
	UpdatePileStatus(ctx context.Context, pileID int, status PileStatus) error
	// BumpPileCounters adds one usage, the charged seconds and the charged
	// amount to a pile's cumulative counters.
	BumpPileCounters(ctx context.Context, pileID int, seconds int64, amount decimal.Decimal) error
	// SeedPiles inserts the given piles if no piles are configured yet.
	SeedPiles(ctx context.Context, piles []*Pile) error

	// Order Operations
	SaveOrder(ctx context.Context, order *Order) error
	ListOrdersByUser(ctx context.Context, username string) ([]*Order, error)
	// PileReport returns every pile with its aggregated order earnings.
	PileReport(ctx context.Context) ([]*PileReport, error)
}
