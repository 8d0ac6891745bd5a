package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a subscriber id is not in the directory.
var ErrNotFound = errors.New("subscriber not found")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": process-local map, nothing survives a restart
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Subscriber is one registered recipient.
type Subscriber struct {
	ID           int64
	FirstName    string
	Username     string
	LastActiveAt time.Time
}

// DispatchRecord summarizes one fan-out run for the stats view.
type DispatchRecord struct {
	At        time.Time
	Kind      string // "daily" | "manual" | "broadcast"
	Attempted int
	Delivered int
	Failed    int
	TookMS    int64
}
