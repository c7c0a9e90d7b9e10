// Package identity carries the already-authenticated caller on a context.Context.
// Consumers read it; nothing below the transport layer ever writes it.
package identity

import "context"

type Role string

const (
	RoleMember        Role = "Member"
	RoleAdministrator Role = "Administrator"
)

func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdministrator
}

type Identity struct {
	MemberID int64
	Role     Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdministrator }

type ctxKey struct{}

func With(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the caller stored on ctx; ok is false for anonymous/system calls.
func From(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
