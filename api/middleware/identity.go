package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/loterodev/swapmarket-backend/api/responses"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
)

const userIDHeader = "X-User-Id"

// Identity reads the caller identity stamped by the edge gateway.
// Token verification happens upstream; this service only trusts the header.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(userIDHeader)
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing caller identity"))
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid caller identity"))
				return
			}

			ctx := WithUserID(r.Context(), raw)
			if logg != nil {
				ctx = logg.WithField(ctx, "user_id", raw)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
