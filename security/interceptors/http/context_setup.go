package http

import (
	"context"
	"net/http"

	"github.com/pitabwire/util"

	"github.com/pitabwire/tenantkit/config"
)

// ContextSetupMiddleware copies the service configuration and logger from mainCtx onto each
// request context, then applies propagators in order.
func ContextSetupMiddleware(
	mainCtx context.Context,
	propagators ...func(ctx context.Context) context.Context,
) func(http.Handler) http.Handler {
	cfg := config.FromContext[any](mainCtx)
	logger := util.Log(mainCtx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqCtx := r.Context()
			if cfg != nil {
				reqCtx = config.ToContext(reqCtx, cfg)
			}
			reqCtx = util.ContextWithLogger(reqCtx, logger)

			for _, propagate := range propagators {
				reqCtx = propagate(reqCtx)
			}

			next.ServeHTTP(w, r.WithContext(reqCtx))
		})
	}
}
