// Package auth decides who is an administrator and whether an onboarding
// secret matches. Pure and side-effect free so every component can call
// it without coordination.
package auth

import (
	"crypto/subtle"
	"sort"
)

// Gate holds the fixed admin roster and the optional onboarding secret.
// The roster is set at configuration time; there is no runtime promote.
type Gate struct {
	admins map[int64]struct{}
	secret string
}

func NewGate(adminIDs []int64, secret string) *Gate {
	set := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		set[id] = struct{}{}
	}
	return &Gate{admins: set, secret: secret}
}

func (g *Gate) IsAdmin(actorID int64) bool {
	_, ok := g.admins[actorID]
	return ok
}

// Admins returns the roster ids in ascending order.
func (g *Gate) Admins() []int64 {
	out := make([]int64, 0, len(g.admins))
	for id := range g.admins {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SecretRequired reports whether onboarding must pass the challenge.
func (g *Gate) SecretRequired() bool { return g.secret != "" }

// CheckSecret compares in constant time. An empty configured secret
// fails closed; callers must not reach this path without one set.
func (g *Gate) CheckSecret(submitted string) bool {
	if g.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(g.secret)) == 1
}
