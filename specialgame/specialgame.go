// Package specialgame holds per-title hooks for games that verify their own
// asset files. A hook patches the game's integrity bookkeeping around enable
// and disable so substituted files are accepted. Hook failures are best-effort
// bookkeeping and never roll back a completed file operation.
package specialgame

import (
	"context"
	"strings"

	"modlab/db"
	"modlab/gameconfig"
)

// Hook is the capability set a special-game entry may implement. Embed Base
// to pick up no-op defaults.
type Hook interface {
	Name() string
	// Match reports whether the hook applies to the game package name.
	Match(packageName string) bool
	// RecognizesMember reports whether a member name marks an archive as a mod
	// for this game even when it matches no known asset filename.
	RecognizesMember(name string) bool
	// AfterEnable runs once the mod's files are in place.
	AfterEnable(game gameconfig.GameInfo, mod *db.Mod) error
	// BeforeDisable runs before originals are restored; backups carry the
	// original digests the game's bookkeeping must return to.
	BeforeDisable(game gameconfig.GameInfo, mod *db.Mod, backups []db.Backup) error
	OnSelectGame(game gameconfig.GameInfo) error
	// OnStartGame may block for a bounded window; cancel ctx to stop early.
	OnStartGame(ctx context.Context, game gameconfig.GameInfo) error
	// UpdateGameInfo lets the hook adjust a freshly loaded descriptor.
	UpdateGameInfo(game gameconfig.GameInfo) gameconfig.GameInfo
}

// Base provides no-op implementations for every optional capability.
type Base struct{}

func (Base) RecognizesMember(string) bool { return false }

func (Base) AfterEnable(gameconfig.GameInfo, *db.Mod) error { return nil }

func (Base) BeforeDisable(gameconfig.GameInfo, *db.Mod, []db.Backup) error { return nil }

func (Base) OnSelectGame(gameconfig.GameInfo) error { return nil }

func (Base) OnStartGame(context.Context, gameconfig.GameInfo) error { return nil }

func (Base) UpdateGameInfo(game gameconfig.GameInfo) gameconfig.GameInfo { return game }

// Registry resolves the hook for a game, if any. No match is a no-op, not an
// error.
type Registry struct {
	hooks []Hook
}

func NewRegistry(hooks ...Hook) *Registry {
	return &Registry{hooks: hooks}
}

// For returns the first hook matching the package name.
func (r *Registry) For(packageName string) (Hook, bool) {
	for _, h := range r.hooks {
		if h.Match(packageName) {
			return h, true
		}
	}
	return nil, false
}

// RecognizesMember reports whether any hook for the package claims the member.
func (r *Registry) RecognizesMember(packageName, member string) bool {
	h, found := r.For(packageName)
	return found && h.RecognizesMember(member)
}

// matchSubstring is the registry's matching rule: hooks bind to every
// regional variant of a title sharing the vendor segment.
func matchSubstring(packageName, fragment string) bool {
	return strings.Contains(strings.ToLower(packageName), fragment)
}
