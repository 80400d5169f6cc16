package auth

import "strings"

// Resolver maps authenticated identities to roles. The mapping is injected
// from configuration at construction; there are no compiled-in allowlists.
type Resolver struct {
	roles       map[string]Role
	defaultRole Role
}

// NewResolver builds a resolver from an email-to-role map. Emails are
// matched case-insensitively. Unknown identities get defaultRole.
func NewResolver(roles map[string]string, defaultRole Role) *Resolver {
	normalized := make(map[string]Role, len(roles))
	for email, role := range roles {
		normalized[strings.ToLower(strings.TrimSpace(email))] = Role(role)
	}
	return &Resolver{roles: normalized, defaultRole: defaultRole}
}

// Resolve returns the role for the given email.
func (r *Resolver) Resolve(email string) Role {
	if role, ok := r.roles[strings.ToLower(strings.TrimSpace(email))]; ok {
		return role
	}
	return r.defaultRole
}
