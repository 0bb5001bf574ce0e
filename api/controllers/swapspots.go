package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/loterodev/swapmarket-backend/api/responses"
	"github.com/loterodev/swapmarket-backend/api/validators"
	"github.com/loterodev/swapmarket-backend/internal/fulfillment"
	"github.com/loterodev/swapmarket-backend/pkg/enums"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
)

// TransitionEngine is the fulfillment surface the HTTP layer drives.
type TransitionEngine interface {
	Transition(ctx context.Context, action enums.FulfillmentAction, ref fulfillment.SaleRef, swapSpotID *uuid.UUID) (bool, error)
}

type swapSpotScanRequest struct {
	SaleID   uuid.UUID `json:"sale_id" validate:"required"`
	SellerID uuid.UUID `json:"seller_id" validate:"required"`
}

// SwapSpotReceive records a package scanned into a swap spot's inventory.
func SwapSpotReceive(engine TransitionEngine, logg *logger.Logger) http.HandlerFunc {
	return swapSpotScan(engine, logg, enums.FulfillmentActionSwapSpotReceiving)
}

// SwapSpotFulfill records the buyer picking a package up from a swap spot.
func SwapSpotFulfill(engine TransitionEngine, logg *logger.Logger) http.HandlerFunc {
	return swapSpotScan(engine, logg, enums.FulfillmentActionSwapSpotFulfillment)
}

func swapSpotScan(engine TransitionEngine, logg *logger.Logger, action enums.FulfillmentAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transition engine unavailable"))
			return
		}

		swapSpotID, err := uuid.Parse(chi.URLParam(r, "swapSpotId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid swap spot id"))
			return
		}

		var req swapSpotScanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ok, err := engine.Transition(r.Context(), action, fulfillment.SaleRef{
			SaleID:   req.SaleID,
			SellerID: req.SellerID,
		}, &swapSpotID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "transition could not be applied"))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"sale_id": req.SaleID,
			"action":  action,
		})
	}
}
