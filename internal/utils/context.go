package utils

import "context"

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "email"
	UserRoleKey  contextKey = "role"
)

const (
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
)

// SystemActor is recorded when a change has no authenticated caller.
const SystemActor = "system"

// SetUserContext sets user info into context (called by middleware)
func SetUserContext(ctx context.Context, id string, email string, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id)
	ctx = context.WithValue(ctx, UserEmailKey, email)
	ctx = context.WithValue(ctx, UserRoleKey, role)
	return ctx
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

func GetUserEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

func GetUserRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// ActorFromContext names the caller for audit records: email, then user id, then SystemActor.
func ActorFromContext(ctx context.Context) string {
	if email := GetUserEmailFromContext(ctx); email != "" {
		return email
	}
	if id, ok := GetUserIDFromContext(ctx); ok {
		return id
	}
	return SystemActor
}

// IsStaff reports whether the caller may operate the admin dashboard.
func IsStaff(ctx context.Context) bool {
	role := GetUserRoleFromContext(ctx)
	return role == RoleAdmin || role == RoleStaff
}
