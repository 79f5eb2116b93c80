package httpserver

import (
	"context"

	"github.com/and161185/secrets/internal/model"
)

type ctxKey string

const accountKey ctxKey = "secrets.account"

// WithAccount stores the authenticated account in context.
func WithAccount(ctx context.Context, a *model.Account) context.Context {
	return context.WithValue(ctx, accountKey, a)
}

// AccountFromCtx fetches the authenticated account from context.
func AccountFromCtx(ctx context.Context) (*model.Account, bool) {
	a, ok := ctx.Value(accountKey).(*model.Account)
	return a, ok && a != nil
}
