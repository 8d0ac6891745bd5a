// Package dialog tracks the one in-progress conversation flow per actor.
//
// State is ephemeral: a restart resets every actor to FlowNone, and a
// newly entered flow silently replaces a stale one. There is exactly one
// dispatch table for the whole process; handlers look flows up here
// instead of registering per-event reply handlers.
package dialog

import (
	"sync"
	"time"
)

type Flow int

const (
	FlowNone Flow = iota
	FlowAwaitingPassword
	FlowAwaitingAddUserID
	FlowAwaitingRemoveUserID
	FlowAwaitingBroadcastContent
)

func (f Flow) String() string {
	switch f {
	case FlowNone:
		return "none"
	case FlowAwaitingPassword:
		return "awaiting_password"
	case FlowAwaitingAddUserID:
		return "awaiting_add_user_id"
	case FlowAwaitingRemoveUserID:
		return "awaiting_remove_user_id"
	case FlowAwaitingBroadcastContent:
		return "awaiting_broadcast_content"
	default:
		return "unknown"
	}
}

type state struct {
	flow      Flow
	createdAt time.Time
}

const shardCount = 16

type shard struct {
	mu     sync.Mutex
	actors map[int64]state
}

// Manager holds per-actor flow state behind sharded locks so two
// concurrent messages from the same actor cannot race a
// read-modify-write, while different actors never contend.
type Manager struct {
	shards [shardCount]shard

	// maxAge discards flows abandoned longer than this; 0 disables.
	maxAge time.Duration
	now    func() time.Time
}

type Option func(*Manager)

// WithMaxAge treats flows older than d as abandoned.
func WithMaxAge(d time.Duration) Option {
	return func(m *Manager) { m.maxAge = d }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{now: time.Now}
	for i := range m.shards {
		m.shards[i].actors = map[int64]state{}
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) shardFor(actorID int64) *shard {
	return &m.shards[uint64(actorID)%shardCount]
}

// Enter starts a flow for the actor, replacing any prior one.
func (m *Manager) Enter(actorID int64, flow Flow) {
	sh := m.shardFor(actorID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if flow == FlowNone {
		delete(sh.actors, actorID)
		return
	}
	sh.actors[actorID] = state{flow: flow, createdAt: m.now()}
}

// Current reports the actor's active flow without clearing it.
func (m *Manager) Current(actorID int64) Flow {
	sh := m.shardFor(actorID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.actors[actorID]
	if !ok {
		return FlowNone
	}
	if m.expired(st) {
		delete(sh.actors, actorID)
		return FlowNone
	}
	return st.flow
}

// Take atomically fetches and clears the actor's flow. The flow handler
// runs after the clear, so a failing handler can never strand the actor
// mid-dialog.
func (m *Manager) Take(actorID int64) Flow {
	sh := m.shardFor(actorID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	st, ok := sh.actors[actorID]
	if !ok {
		return FlowNone
	}
	delete(sh.actors, actorID)
	if m.expired(st) {
		return FlowNone
	}
	return st.flow
}

// Clear drops the actor's flow; reports whether one was active.
func (m *Manager) Clear(actorID int64) bool {
	sh := m.shardFor(actorID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.actors[actorID]
	delete(sh.actors, actorID)
	return ok
}

func (m *Manager) expired(st state) bool {
	return m.maxAge > 0 && m.now().Sub(st.createdAt) > m.maxAge
}
