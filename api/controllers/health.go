package controllers

import (
	"net/http"

	"github.com/oakfield/shopfront-backend/api/responses"
	"github.com/oakfield/shopfront-backend/pkg/config"
	"github.com/oakfield/shopfront-backend/pkg/db"
	pkgerrors "github.com/oakfield/shopfront-backend/pkg/errors"
	"github.com/oakfield/shopfront-backend/pkg/logger"
)

const envHeader = "X-Shopfront-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the backing stores answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, cacheP db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]string{}
		failed := false
		for name, pinger := range map[string]db.Pinger{
			"db":    dbP,
			"redis": cacheP,
		} {
			if pinger == nil {
				checks[name] = "skipped"
				continue
			}
			if err := pinger.Ping(r.Context()); err != nil {
				checks[name] = "down"
				failed = true
				continue
			}
			checks[name] = "ok"
		}

		if failed {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
