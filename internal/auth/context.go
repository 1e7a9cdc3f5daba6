package auth

import "context"

// Principal is an authenticated user with the permission set resolved at
// guard time.
type Principal struct {
	User        User
	Permissions map[string]struct{}
}

// HasPermission reports whether the principal holds the given key.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}

// HasAll reports whether the principal holds every listed key.
func (p Principal) HasAll(keys ...string) bool {
	for _, key := range keys {
		if !p.HasPermission(key) {
			return false
		}
	}
	return true
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}
