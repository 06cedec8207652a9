package auth

import (
	"context"

	"github.com/mind-engage/dsat-sync/internal/rbac"
)

type ctxKey string

const ctxKeySub ctxKey = "sub"

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeySub).(string); ok {
		return s
	}
	return ""
}

// Caller is the subject and role set by the JWT middleware. Both are empty
// for anonymous requests.
func Caller(ctx context.Context) (sub, role string) {
	return SubjectFromContext(ctx), rbac.RoleFromContext(ctx)
}
