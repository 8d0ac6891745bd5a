package storage

import (
	"context"
	"errors"
	"strings"

	logx "cheerbot/pkg/logx"
)

// Store is the persistence API used by the router and dispatcher.
type Store interface {
	// UpsertSubscriber inserts or refreshes a subscriber in a single
	// atomic statement. Re-upserting an existing id never duplicates.
	UpsertSubscriber(ctx context.Context, s Subscriber) error
	// RemoveSubscriber deletes; the bool reports whether a row existed.
	RemoveSubscriber(ctx context.Context, id int64) (bool, error)
	GetSubscriber(ctx context.Context, id int64) (Subscriber, error)
	ListSubscribers(ctx context.Context) ([]Subscriber, error)
	// RecentSubscribers returns up to limit entries ordered by
	// last_active_at descending.
	RecentSubscribers(ctx context.Context, limit int) ([]Subscriber, error)
	CountSubscribers(ctx context.Context) (int, error)

	LogDispatch(ctx context.Context, r DispatchRecord) error
	RecentDispatches(ctx context.Context, limit int) ([]DispatchRecord, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
