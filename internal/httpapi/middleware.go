package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nikolayk812/storefront/internal/metrics"
)

// BuyerHeader carries the authenticated buyer identity set by the upstream auth proxy.
const BuyerHeader = "X-Buyer-Email"

type buyerKey struct{}

func buyerFromContext(ctx context.Context) string {
	buyer, _ := ctx.Value(buyerKey{}).(string)
	return buyer
}

// RequireBuyer rejects requests without an authenticated buyer.
func RequireBuyer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buyer := strings.ToLower(strings.TrimSpace(r.Header.Get(BuyerHeader)))
		if buyer == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing buyer authentication")
			return
		}

		ctx := context.WithValue(r.Context(), buyerKey{}, buyer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Instrument records request count and latency per route pattern.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}
