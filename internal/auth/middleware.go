package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/oralmate/backend/pkg/utils"
)

type contextKey struct{}

var identityKey contextKey

// IdentityFromContext 从请求上下文中取出调用方身份。
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// WithIdentity 将身份注入上下文，供测试与内部调用使用。
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// Middleware 校验 Authorization 头中的 Bearer 凭证。
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := ""
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
		}

		identity, err := g.Verify(token)
		if err != nil {
			utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
