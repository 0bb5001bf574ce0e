package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/loterodev/swapmarket-backend/api/responses"
	"github.com/loterodev/swapmarket-backend/api/validators"
	"github.com/loterodev/swapmarket-backend/internal/payments"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
	"github.com/loterodev/swapmarket-backend/pkg/pagination"
)

// ListPendingPayouts exposes the pending payout ledger to the
// reconciliation sweep. Optional userId filter narrows to one party.
func ListPendingPayouts(ledger payments.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout ledger unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var userID *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("userId")); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
				return
			}
			userID = &parsed
		}

		rows, err := ledger.ListPending(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending payouts"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": rows})
	}
}
