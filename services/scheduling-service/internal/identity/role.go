// Package identity resolves who is calling, once per request, into a
// UserRole carried on the request context.
package identity

import (
	"context"
	"net/http"
)

// Principal is what the identity provider tells us about the caller.
type Principal struct {
	UserID string
	Email  string
}

// UserRole is either Client or Practitioner.
type UserRole interface {
	principal() Principal
}

type Client struct {
	Principal
	ClientID int64
}

type Practitioner struct {
	Principal
	PractitionerID int64
}

func (c Client) principal() Principal       { return c.Principal }
func (p Practitioner) principal() Principal { return p.Principal }

func PrincipalOf(role UserRole) Principal {
	if role == nil {
		return Principal{}
	}
	return role.principal()
}

type ctxKey struct{}

func WithRole(ctx context.Context, role UserRole) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFrom(ctx context.Context) (UserRole, bool) {
	role, ok := ctx.Value(ctxKey{}).(UserRole)
	return role, ok && role != nil
}

func CurrentPractitioner(r *http.Request) (int64, bool) {
	role, _ := RoleFrom(r.Context())
	p, ok := role.(Practitioner)
	return p.PractitionerID, ok
}

func CurrentClient(r *http.Request) (int64, bool) {
	role, _ := RoleFrom(r.Context())
	c, ok := role.(Client)
	return c.ClientID, ok
}
