// Package identity turns chat-platform user ids into human-readable names.
package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/crashbot/internal/cache"
	"golang.org/x/sync/singleflight"
)

// NotAssigned is shown wherever a user field is empty or cannot be resolved.
const NotAssigned = "Not assigned"

// lookupTimeout bounds a shared directory call, which outlives any one caller.
const lookupTimeout = 10 * time.Second

// Profile is the subset of a directory profile the resolver needs.
type Profile struct {
	RealName string
}

// Directory looks up user profiles in the chat platform.
type Directory interface {
	Profile(ctx context.Context, userID string) (*Profile, error)
}

// NameCache is the part of cache.Cache the resolver uses.
type NameCache interface {
	SetDisplayName(ctx context.Context, userID, name string, ttl time.Duration) error
	GetDisplayName(ctx context.Context, userID string) (string, bool, error)
}

var _ NameCache = (cache.Cache)(nil)

// Resolver maps user ids to display names. It never fails: every error path
// collapses to NotAssigned. Safe for concurrent use.
type Resolver struct {
	dir      Directory
	cache    NameCache
	cacheTTL time.Duration
	group    singleflight.Group
}

// NewResolver creates a Resolver. c may be nil to disable caching.
func NewResolver(dir Directory, c NameCache, cacheTTL time.Duration) *Resolver {
	return &Resolver{dir: dir, cache: c, cacheTTL: cacheTTL}
}

// DisplayName returns the real name of userID, or NotAssigned when userID is
// nil or empty, the lookup fails, or the profile carries no name.
func (r *Resolver) DisplayName(ctx context.Context, userID *string) string {
	if userID == nil || *userID == "" {
		return NotAssigned
	}
	id := *userID

	if r.cache != nil {
		if name, ok, err := r.cache.GetDisplayName(ctx, id); err == nil && ok && name != "" {
			return name
		}
	}

	ch := r.group.DoChan(id, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return r.lookup(flightCtx, id), nil
	})
	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		return NotAssigned
	}
}

func (r *Resolver) lookup(ctx context.Context, id string) (name string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in directory lookup", "user_id", id, "panic", rec)
			name = NotAssigned
		}
	}()

	profile, err := r.dir.Profile(ctx, id)
	if err != nil {
		slog.Warn("directory lookup failed", "user_id", id, "error", err)
		return NotAssigned
	}
	if profile == nil || profile.RealName == "" {
		return NotAssigned
	}

	if r.cache != nil {
		if err := r.cache.SetDisplayName(ctx, id, profile.RealName, r.cacheTTL); err != nil {
			slog.Debug("caching display name failed", "user_id", id, "error", err)
		}
	}
	return profile.RealName
}

// MentionFor returns the platform mention markup for userID, or NotAssigned
// when userID is nil or empty.
func MentionFor(userID *string) string {
	if userID == nil || *userID == "" {
		return NotAssigned
	}
	return "<@" + *userID + ">"
}
