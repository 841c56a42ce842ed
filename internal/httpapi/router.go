package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nikolayk812/storefront/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func NewRouter(h *Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Instrument(m))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler(gatherer))

	r.Route("/api", func(r chi.Router) {
		// long-lived, so kept out of the request timeout
		r.With(RequireBuyer).Get("/notifications", h.Notifications)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Route("/payments", func(r chi.Router) {
				r.Post("/webhook", h.PaymentWebhook)
				r.Get("/delivery-methods", h.DeliveryMethods)
				r.With(RequireBuyer).Post("/{cartId}", h.CreateOrUpdatePaymentIntent)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Post("/", h.UpdateCart)
				r.Get("/{id}", h.GetCart)
				r.Delete("/{id}", h.DeleteCart)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Use(RequireBuyer)
				r.Post("/", h.CreateOrder)
				r.Get("/", h.ListOrders)
				r.Get("/{id}", h.GetOrder)
			})
		})
	})

	return r
}
