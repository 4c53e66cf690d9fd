package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/auth"
	"github.com/noah-isme/backend-parfum/internal/catalog"
	"github.com/noah-isme/backend-parfum/internal/checkout"
	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/config"
	"github.com/noah-isme/backend-parfum/internal/health"
	"github.com/noah-isme/backend-parfum/internal/obs"
	"github.com/noah-isme/backend-parfum/internal/order"
	"github.com/noah-isme/backend-parfum/internal/payment"
	"github.com/noah-isme/backend-parfum/internal/queue"
	"github.com/noah-isme/backend-parfum/internal/ratelimit"
	"github.com/noah-isme/backend-parfum/internal/reports"
	"github.com/noah-isme/backend-parfum/internal/security"
	"github.com/noah-isme/backend-parfum/internal/settings"
	"github.com/noah-isme/backend-parfum/internal/shopper"
	"github.com/noah-isme/backend-parfum/internal/user"
)

type routeDeps struct {
	cfg     *config.Config
	logger  zerolog.Logger
	tracing bool
	metrics *obs.HTTPMetrics
	redis   *redis.Client

	authService    *auth.Service
	catalog        *catalog.Handler
	shopper        *shopper.Handler
	addresses      *user.Handler
	settings       *settings.Handler
	checkout       *checkout.Handler
	orders         *order.Handler
	reports        *reports.Handler
	queueAdmin     *queue.AdminHandler
	authLimit      ratelimit.Handler
	verifyLimit    ratelimit.Handler
	paymentWebhook payment.Webhook
	mockPay        http.HandlerFunc
	health         health.Handler
}

func routes(d routeDeps) http.Handler {
	cfg := d.cfg

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.metrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.logger}.Middleware)
	r.Use(security.Headers{
		EnableHSTS:            cfg.IsProduction(),
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Guest-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-Guest-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if d.metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", !cfg.IsProduction()) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}
	r.Get("/health/live", d.health.Live)
	r.Get("/health/ready", d.health.Ready)

	authMW := auth.Middleware{Service: d.authService}
	authHandler := &auth.Handler{
		Service:           d.authService,
		Logger:            obs.Component(d.logger, "auth"),
		RefreshCookieName: cfg.RefreshCookieName,
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
		CookieSameSite:    cfg.CookieSameSite,
	}
	csrf := security.CSRF{
		SessionCookie: cfg.RefreshCookieName,
		Domain:        cfg.CookieDomain,
		Secure:        cfg.CookieSecure,
		SameSite:      cfg.CookieSameSite,
	}
	idem := common.Idem{R: d.redis, TTL: cfg.IdempotencyTTL}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(authMW.Authenticate)
		api.Use(shopper.GuestMiddleware)

		api.Post("/guest", d.shopper.IssueGuest)
		api.Get("/settings", d.settings.Public)

		api.Get("/categories", d.catalog.Categories)
		api.Get("/products", d.catalog.Products)
		api.Get("/products/{slug}", d.catalog.ProductDetail)

		api.Route("/auth", func(ar chi.Router) {
			ar.Get("/csrf", csrf.Issue)
			ar.Group(func(limited chi.Router) {
				limited.Use(d.authLimit.Middleware)
				limited.Post("/register", authHandler.Register)
				limited.Post("/login", authHandler.Login)
			})
			ar.Group(func(cookie chi.Router) {
				cookie.Use(csrf.Middleware)
				cookie.Post("/refresh", authHandler.Refresh)
				cookie.Post("/logout", authHandler.Logout)
			})
			ar.With(authMW.RequireAuth).Get("/me", authHandler.Me)
		})

		api.Route("/cart", func(cr chi.Router) {
			cr.Get("/", d.shopper.Cart)
			cr.Delete("/", d.shopper.ClearCart)
			cr.Post("/items", d.shopper.AddCartItem)
			cr.Patch("/items/{productId}", d.shopper.UpdateCartItem)
			cr.Delete("/items/{productId}", d.shopper.RemoveCartItem)
			cr.Post("/quote", d.checkout.Quote)
		})
		api.Route("/wishlist", func(wr chi.Router) {
			wr.Get("/", d.shopper.Wishlist)
			wr.Delete("/", d.shopper.ClearWishlist)
			wr.Post("/items", d.shopper.AddWishlistItem)
			wr.Delete("/items/{productId}", d.shopper.RemoveWishlistItem)
		})
		api.Get("/lists/stream", d.shopper.Stream)
		api.With(authMW.RequireAuth).Post("/lists/merge", d.shopper.Merge)

		api.Group(func(pr chi.Router) {
			pr.Use(authMW.RequireAuth)

			pr.Get("/users/me/addresses", d.addresses.List)
			pr.Post("/users/me/addresses", d.addresses.Create)
			pr.Patch("/users/me/addresses/{addressID}", d.addresses.Update)
			pr.Delete("/users/me/addresses/{addressID}", d.addresses.Delete)

			pr.With(idem.Middleware).Post("/checkout", d.checkout.Checkout)
			pr.With(d.verifyLimit.Middleware).Post("/checkout/verify", d.checkout.Verify)

			pr.Get("/orders", d.orders.List)
			pr.Get("/orders/{orderId}", d.orders.Get)
			pr.Get("/orders/{orderId}/invoice", d.orders.Invoice)
		})

		api.Post("/payments/webhook", d.paymentWebhook.Handle)
		if d.mockPay != nil {
			api.Post("/payments/mock/{gatewayOrderId}/pay", d.mockPay)
		}

		api.Route("/admin", func(adm chi.Router) {
			adm.Use(authMW.RequireAuth)
			adm.Use(authMW.RequireRole(auth.RoleAdmin))

			adm.Get("/products", d.catalog.AdminProducts)
			adm.Post("/products", d.catalog.CreateProduct)
			adm.Get("/products/{id}", d.catalog.AdminProduct)
			adm.Put("/products/{id}", d.catalog.UpdateProduct)
			adm.Delete("/products/{id}", d.catalog.DeleteProduct)
			adm.Post("/categories", d.catalog.CreateCategory)
			adm.Put("/categories/{id}", d.catalog.UpdateCategory)
			adm.Delete("/categories/{id}", d.catalog.DeleteCategory)

			adm.Get("/orders", d.orders.AdminList)
			adm.Get("/orders/{orderId}", d.orders.AdminGet)
			adm.Patch("/orders/{orderId}/status", d.orders.PatchStatus)

			adm.Get("/users", authHandler.AdminUsers)
			adm.Put("/users/{userID}/roles", authHandler.SetUserRoles)

			adm.Get("/settings", d.settings.Get)
			adm.Put("/settings", d.settings.Put)

			adm.Get("/reports/sales", d.reports.Sales)

			adm.Get("/queue/stats", d.queueAdmin.Stats)
			adm.Get("/queue/dead", d.queueAdmin.ListDLQ)
			adm.Post("/queue/dead/{taskID}/replay", d.queueAdmin.ReplayDLQ)
			adm.Delete("/queue/dead/{taskID}", d.queueAdmin.DeleteDLQ)
		})
	})

	return r
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
