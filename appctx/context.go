package appctx

import "context"

// ContextKey types every value the request pipeline stores on a context.
// It lives here so config, utils and middlewares can share keys without
// importing each other.
type ContextKey string

func (c ContextKey) String() string { return "appctx." + string(c) }

const (
	ContextKeyToken         ContextKey = "Token"
	ContextKeyTokenId       ContextKey = "TokenId"
	ContextKeyUsername      ContextKey = "Username" // login email
	ContextKeyUserId        ContextKey = "UserId"
	ContextKeyUserName      ContextKey = "UserName" // display name
	ContextKeyRole          ContextKey = "Role"
	ContextKeyCorrelationId ContextKey = "CorrelationId"
)

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

func GetInt(ctx context.Context, key ContextKey) (int, bool) {
	v, ok := ctx.Value(key).(int)
	return v, ok
}
