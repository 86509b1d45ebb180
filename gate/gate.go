// Package gate enforces per-bucket invocation limits for commands: window
// based cooldowns and bounded concurrency. Buckets are shared across
// concurrently executing handlers, so all token accounting happens under
// synchronization.
package gate

import (
	"context"
	"time"
)

// Scope selects which ids of an invocation form the bucket key.
type Scope int

const (
	// Global shares one bucket across every invocation.
	Global Scope = iota
	User
	Guild
	Channel
	// Member combines guild and user.
	Member
	Category
	Role
)

// KeySet carries the invocation ids a Scope can key on. Absent ids resolve
// to the empty string, which simply folds those invocations into one bucket
// (a DM has no guild, matching the original behavior of guild buckets).
type KeySet struct {
	UserID     string
	GuildID    string
	ChannelID  string
	CategoryID string
	RoleID     string
}

func (k KeySet) value(scope Scope) string {
	switch scope {
	case User:
		return k.UserID
	case Guild:
		return k.GuildID
	case Channel:
		return k.ChannelID
	case Member:
		return k.GuildID + ":" + k.UserID
	case Category:
		return k.CategoryID
	case Role:
		return k.RoleID
	default:
		return ""
	}
}

// Gate is the single entry point commands pass through before their handler
// runs: concurrency first, then cooldown. The returned release func must be
// called exactly once when the handler completes, success or not.
type Gate struct {
	cooldowns   *CooldownGate
	concurrency *ConcurrencyGate
}

func New(options ...Option) *Gate {
	g := &Gate{
		cooldowns:   NewCooldownGate(time.Now),
		concurrency: NewConcurrencyGate(),
	}
	for _, option := range options {
		option(g)
	}
	return g
}

type Option func(*Gate)

// WithClock replaces the cooldown clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.cooldowns = NewCooldownGate(now)
	}
}

// Acquire claims a concurrency slot and a cooldown token for the command
// identified by name. On failure nothing is held and the returned error is
// either a *ConcurrencyError or a *CooldownError.
func (g *Gate) Acquire(ctx context.Context, name string, cooldown *Cooldown, concurrency *MaxConcurrency, keys KeySet) (release func(), err error) {
	release, err = g.concurrency.Acquire(ctx, name, concurrency, keys)
	if err != nil {
		return nil, err
	}

	if err = g.cooldowns.Acquire(name, cooldown, keys); err != nil {
		release()
		return nil, err
	}

	return release, nil
}
