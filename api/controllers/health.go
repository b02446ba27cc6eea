package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/makersrow/makersrow-backend/api/responses"
	"github.com/makersrow/makersrow-backend/pkg/config"
	pkgerrors "github.com/makersrow/makersrow-backend/pkg/errors"
	"github.com/makersrow/makersrow-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

// Pinger is the readiness contract the backing-store clients satisfy.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Makersrow-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the backing stores so load balancers stop routing to an
// instance that lost its database or cache. Nil pingers are skipped, which
// lets the worker deployments reuse the handler with a narrower set.
func HealthReady(cfg *config.Config, logg *logger.Logger, dependencies map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Makersrow-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for name, dep := range dependencies {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
