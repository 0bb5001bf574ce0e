package shippingwebhook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loterodev/swapmarket-backend/internal/fulfillment"
	"github.com/loterodev/swapmarket-backend/pkg/enums"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
)

// ShippingEvent is the payload the carrier aggregator posts on every
// tracking update. Delivery is at-least-once, so the same event id can
// arrive more than once.
type ShippingEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	SaleID         uuid.UUID `json:"sale_id"`
	SellerID       uuid.UUID `json:"seller_id"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// carrier event types we subscribe to. Anything else is acknowledged
// and dropped.
var carrierActions = map[string]enums.FulfillmentAction{
	"shipment.label_created":    enums.FulfillmentActionLabelCreated,
	"shipment.in_transit":       enums.FulfillmentActionShipped,
	"shipment.out_for_delivery": enums.FulfillmentActionOutForDelivery,
	"shipment.delivered":        enums.FulfillmentActionDelivered,
}

type transitionEngine interface {
	Transition(ctx context.Context, action enums.FulfillmentAction, ref fulfillment.SaleRef, swapSpotID *uuid.UUID) (bool, error)
}

type Service struct {
	engine transitionEngine
	logg   *logger.Logger
}

func NewService(engine transitionEngine, logg *logger.Logger) (*Service, error) {
	if engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transition engine required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{engine: engine, logg: logg}, nil
}

// HandleEvent advances the sale named by the event. Unknown event types and
// terminal engine rejections are acknowledged so the carrier stops retrying;
// retryable failures (storage, processor) are returned to the caller.
func (s *Service) HandleEvent(ctx context.Context, event *ShippingEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping event required")
	}
	if event.SaleID == uuid.Nil || event.SellerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale and seller ids required")
	}

	action, ok := carrierActions[event.EventType]
	if !ok {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":   event.EventID,
			"event_type": event.EventType,
		})
		s.logg.Info(logCtx, "ignoring unsubscribed carrier event")
		return nil
	}

	_, err := s.engine.Transition(ctx, action, fulfillment.SaleRef{
		SaleID:   event.SaleID,
		SellerID: event.SellerID,
	}, nil)
	if err != nil {
		// Transient failures bubble up so the boundary answers 5xx and the
		// carrier redelivers. Business rejections are terminal: acknowledge
		// so the carrier stops retrying a payload that can never apply.
		if pkgerrors.IsRetryable(err) {
			return err
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id": event.EventID,
			"action":   string(action),
		})
		s.logg.Warn(logCtx, "carrier event rejected, acknowledging")
	}
	return nil
}
