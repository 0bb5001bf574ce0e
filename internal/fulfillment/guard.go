package fulfillment

import (
	"context"

	"github.com/loterodev/swapmarket-backend/pkg/db/models"
	"github.com/loterodev/swapmarket-backend/pkg/enums"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
)

// IdempotencyGuard decides whether a transition is a duplicate delivery of an
// event already applied. It re-reads storage on every call so retries
// separated in time are still caught.
type IdempotencyGuard struct {
	repo Repository
	logg *logger.Logger
}

// NewIdempotencyGuard builds a guard over the fulfillment repository.
func NewIdempotencyGuard(repo Repository, logg *logger.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{repo: repo, logg: logg}
}

// AlreadyApplied reports whether the sale already sits at or beyond the
// target status. Status only moves forward along the transition graph, so a
// late duplicate of an earlier-stage event ranks at or behind the current
// status and is absorbed here, not re-applied. A missing sale also counts as
// applied: retrying a transition for a record that does not exist can never
// succeed, so the event is swallowed with a warning instead of bouncing
// forever.
func (g *IdempotencyGuard) AlreadyApplied(ctx context.Context, ref SaleRef, target enums.SaleStatus) (*models.Sale, bool, error) {
	sale, err := g.repo.FindSale(ctx, ref)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			g.logg.Warn(ctx, "sale not found, treating transition as already applied")
			return nil, true, nil
		}
		return nil, false, err
	}
	if sale.Status == target {
		g.logg.Warn(g.logg.WithField(ctx, "status", string(target)), "duplicate fulfillment event")
		return sale, true, nil
	}
	if sale.Status.Rank() >= target.Rank() {
		logCtx := g.logg.WithFields(ctx, map[string]any{
			"status": string(sale.Status),
			"target": string(target),
		})
		g.logg.Warn(logCtx, "stale fulfillment event, sale already past target")
		return sale, true, nil
	}
	return sale, false, nil
}
