package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spice-admin/customer-app-sub000/internal/auth"
	"github.com/spice-admin/customer-app-sub000/internal/metrics"
)

type Handlers struct {
	Catalog  *CatalogHandler
	Checkout *CheckoutHandler
	Finalize *FinalizeHandler
	Account  *AccountHandler
	OTP      *OTPHandler
	Admin    *AdminHandler
	Cart     *CartHandler
}

type RouterConfig struct {
	Tokens             *auth.TokenVerifier
	Metrics            *metrics.Metrics
	AllowedOrigin      string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(CORS(cfg.AllowedOrigin))
	r.Use(cfg.Metrics.Middleware)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}
	r.Use(middleware.Compress(5))
	r.Use(Authenticate(cfg.Tokens))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public
	r.Get("/packages", h.Catalog.Packages)
	r.Get("/addons", h.Catalog.Addons)
	r.Get("/delivery-schedule", h.Catalog.DeliverySchedule)
	r.Post("/send-otp", h.OTP.SendOTP)
	r.Post("/verify-otp", h.OTP.VerifyOTP)
	r.Route("/password-reset", func(r chi.Router) {
		r.Post("/start", h.OTP.StartPasswordReset)
		r.Post("/verify", h.OTP.VerifyPasswordReset)
		r.Post("/complete", h.OTP.CompletePasswordReset)
	})
	r.Post("/finalize-order", h.Finalize.FinalizeOrder)
	r.Post("/finalize-addon-order", h.Finalize.FinalizeAddonOrder)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)

		r.Post("/create-checkout-session", h.Checkout.CreateCheckoutSession)
		r.Post("/create-addon-checkout-session", h.Checkout.CreateAddonCheckoutSession)

		r.Get("/orders", h.Account.ListOrders)
		r.Get("/orders/{order_id}", h.Account.GetOrder)
		r.Get("/addon-orders", h.Account.ListAddonOrders)
		r.Get("/profile", h.Account.GetProfile)
		r.Put("/profile", h.Account.UpdateProfile)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Get("/admin/revenue", h.Admin.Revenue)
		r.Post("/admin/catalog/refresh", h.Admin.RefreshCatalog)
	})

	return r
}
