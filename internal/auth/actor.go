// Package auth carries the authenticated actor and session token through
// request contexts and resolves roles. Downstream components receive a
// resolved Actor; none of them re-derive capabilities from raw identity
// strings.
package auth

import (
	"context"
	"errors"
	"strings"
)

// Role is a resolved capability level.
type Role string

const (
	RoleAnalyst Role = "analyst"
	RoleAdmin   Role = "admin"
	RoleViewer  Role = "viewer"
)

// Actor is the authenticated user of a console session.
type Actor struct {
	Name  string
	Email string
	Role  Role
}

// FirstName returns the display name's first word, used to sign management
// log entries.
func (a Actor) FirstName() string {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return "Tú"
	}
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}

// CanAssign reports whether the actor may assign operations to analysts.
func (a Actor) CanAssign() bool {
	return a.Role == RoleAdmin
}

// CanVerify reports whether the actor may mutate the verification working set.
func (a Actor) CanVerify() bool {
	return a.Role == RoleAdmin || a.Role == RoleAnalyst
}

type ctxKey int

const (
	actorKey ctxKey = iota
	tokenKey
)

// ErrNoToken is returned when a context carries no session token.
var ErrNoToken = errors.New("no session token in context")

// WithActor returns a context carrying the actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom extracts the actor from the context.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// WithToken returns a context carrying the session's bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFrom extracts the bearer token from the context.
func TokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}

// ContextTokens sources the orchestrator bearer token from the request
// context, so every upstream call forwards the caller's own session token.
type ContextTokens struct{}

// Token implements the orchestrator TokenSource.
func (ContextTokens) Token(ctx context.Context) (string, error) {
	token, ok := TokenFrom(ctx)
	if !ok {
		return "", ErrNoToken
	}
	return token, nil
}

// StaticTokens is a fixed-token source, used for service-account access and
// in tests.
type StaticTokens string

// Token implements the orchestrator TokenSource.
func (s StaticTokens) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}
