package auth

import "context"

type tokenKey struct{}

// ContextWithToken stores the operator's raw bearer token so outbound
// calls to the attendance backend can forward it.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the forwarded bearer token, if any.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}
