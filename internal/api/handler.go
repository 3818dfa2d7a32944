// Package api exposes the coupon engine over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/couponables/internal/domain/auth"
	"github.com/xenking/couponables/internal/domain/coupon"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// Pepper keys the HMAC that API keys are stored under.
	Pepper []byte
	// CodeLength is the default length of generated codes.
	CodeLength int
}

// Handler serves the coupon API, delegating business logic to the engine.
type Handler struct {
	coupons    coupon.Engine
	apikeys    auth.Repository
	pepper     []byte
	codeLength int
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, coupons coupon.Engine, apikeys auth.Repository) *Handler {
	return &Handler{
		coupons:    coupons,
		apikeys:    apikeys,
		pepper:     cfg.Pepper,
		codeLength: cfg.CodeLength,
	}
}

// Router returns the API routes mounted under /api.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/coupons", func(r chi.Router) {
			r.Get("/{code}", h.GetCoupon)

			// The redeemer in the body is trusted only from key holders.
			r.Group(func(r chi.Router) {
				r.Use(h.RequireAPIKey(auth.ScopeRedeemCoupons))
				r.Post("/{code}/verify", h.VerifyCoupon)
				r.Post("/{code}/redeem", h.RedeemCoupon)
				r.Post("/{code}/calculate", h.CalculateDiscount)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAPIKey(auth.ScopeManageCoupons))
				r.Post("/", h.CreateCoupon)
				r.Post("/generate", h.GenerateCoupons)
			})
		})
		r.With(h.RequireAPIKey(auth.ScopeRedeemCoupons)).
			Get("/redeemers/{type}/{id}/coupons", h.ListRedemptions)
	})
	return r
}
