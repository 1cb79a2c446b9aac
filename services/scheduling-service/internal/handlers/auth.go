package handlers

import (
	"context"
	"net/http"

	"github.com/md-rashed-zaman/telehealth/libs/auth"
	"github.com/md-rashed-zaman/telehealth/libs/httpx"
	"github.com/md-rashed-zaman/telehealth/services/scheduling-service/internal/profile"
)

type principalKey struct{}

func PrincipalFromContext(ctx context.Context) (profile.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(profile.Principal)
	return p, ok
}

// RequireAuth verifies the bearer token and stores the principal on the request context.
func RequireAuth(signer *auth.Signer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeErrorMessage(w, http.StatusUnauthorized, "unauthorized", "missing or invalid Authorization header")
			return
		}
		claims, err := signer.Verify(token)
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		p := profile.Principal{
			ID:    claims.PrincipalID(),
			Role:  claims.Role,
			Name:  claims.Name,
			Email: claims.Email,
			Phone: claims.Phone,
		}
		httpx.SetLoggedPrincipal(r.Context(), p.ID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}
