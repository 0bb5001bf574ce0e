package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/loterodev/swapmarket-backend/api/responses"
	"github.com/loterodev/swapmarket-backend/pkg/config"
	pkgerrors "github.com/loterodev/swapmarket-backend/pkg/errors"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

// Pinger is any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthDeps lists the dependencies the readiness probe checks.
type HealthDeps struct {
	DB     Pinger
	Redis  Pinger
	PubSub Pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SwapMarket-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, deps HealthDeps) http.HandlerFunc {
	checks := []struct {
		name   string
		pinger Pinger
	}{
		{"postgres", deps.DB},
		{"redis", deps.Redis},
		{"pubsub", deps.PubSub},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SwapMarket-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := map[string]string{}
		for _, check := range checks {
			if check.pinger == nil {
				continue
			}
			if err := check.pinger.Ping(ctx); err != nil {
				status[check.name] = "down"
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.name+" unavailable").WithDetails(status))
				return
			}
			status[check.name] = "up"
		}

		responses.WriteSuccess(w, status)
	}
}
