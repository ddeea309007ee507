package router

import (
	"context"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"storefront/internal/apiclient"
	"storefront/internal/config"
	"storefront/internal/guard"
	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/services"
	"storefront/internal/session"
	"storefront/web"
)

// Deps are the process-wide collaborators built in main.
type Deps struct {
	Manager  *session.Manager
	Backend  *apiclient.Backend
	Ledger   services.Ledger
	Uploader services.ObjectUploader
}

func SetupRouter(cfg config.Config, deps Deps, logger zerolog.Logger) (*mux.Router, error) {
	templates := handlers.NewTemplateCache(logger)
	if err := templates.Load(web.Templates, "templates"); err != nil {
		return nil, err
	}

	roleService := services.NewRoleService(cfg.RoleCacheTTL, cfg.APITimeout, logger)
	roleClaims := services.NewRoleClaims(cfg.RoleClaimKey, cfg.RoleClaimTTL, logger)
	checkoutService := services.NewCheckoutService(logger)
	reconcileService := services.NewReconcileService(deps.Ledger, logger)
	orderService := services.NewOrderService(logger)
	catalogService := services.NewCatalogService(logger)
	adminService := services.NewAdminService(roleService, logger)
	reviewService := services.NewReviewService(logger)
	uploadService := services.NewUploadService(deps.Uploader, cfg.S3Bucket, cfg.ImageMaxWidth, logger)
	mailService := services.NewMailService(services.MailConfig{
		Address:  cfg.SMTPAddress,
		Host:     cfg.SMTPHost,
		From:     cfg.FromEmail,
		Password: cfg.FromEmailPassword,
		To:       cfg.ContactEmail,
	}, logger)

	render := handlers.NewRenderer(templates, deps.Manager, cfg.GuardWait, logger)
	guards := middleware.NewGuards(deps.Manager, roleService, roleClaims, render, cfg.GuardWait, logger)

	authHandler := handlers.NewAuthHandler(render, deps.Manager, uploadService, logger)
	catalogHandler := handlers.NewCatalogHandler(render, catalogService, logger)
	checkoutHandler := handlers.NewCheckoutHandler(render, checkoutService, reconcileService, logger)
	dashboardHandler := handlers.NewDashboardHandler(render, guards, deps.Manager, orderService, reviewService, uploadService, logger)
	adminHandler := handlers.NewAdminHandler(render, adminService, orderService, uploadService, logger)
	pageHandler := handlers.NewPageHandler(render, mailService, logger)

	policy := apiclient.LogoutOnAuthErrors
	if !cfg.LogoutOnForbidden {
		policy = apiclient.LogoutOnUnauthorizedOnly
	}
	sessionMW := middleware.Session(deps.Manager, deps.Backend, policy)
	rateLimiter := middleware.NewRateLimiter(rate.Limit(2), 10)
	limited := func(h http.HandlerFunc) http.Handler {
		return rateLimiter.Middleware()(h)
	}
	csrfMW := csrf.Protect(
		cfg.CSRFKey,
		csrf.Secure(cfg.CookieSecure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(pageHandler.CSRFFailed)),
	)

	r := mux.NewRouter()

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.PerformanceMonitoring(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())

	r.HandleFunc("/health", pageHandler.Health).Methods("GET")
	r.PathPrefix("/static/").Handler(http.FileServerFS(web.Static)).Methods("GET", "HEAD")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.CORS(cfg.CORSOrigins))
	api.Use(sessionMW)
	api.Handle("/chatbot", limited(pageHandler.Chatbot)).Methods("POST", "OPTIONS")

	pages := r.PathPrefix("/").Subrouter()
	pages.Use(csrfMW)
	pages.Use(sessionMW)

	pages.HandleFunc("/", catalogHandler.Home).Methods("GET")
	pages.HandleFunc("/products", catalogHandler.Products).Methods("GET")
	pages.HandleFunc("/products/{id}", catalogHandler.Product).Methods("GET")
	pages.HandleFunc("/about", pageHandler.About).Methods("GET")
	pages.HandleFunc("/forbidden", pageHandler.Forbidden).Methods("GET")
	pages.HandleFunc("/contact", pageHandler.ContactPage).Methods("GET")
	pages.Handle("/contact", limited(pageHandler.Contact)).Methods("POST")
	pages.HandleFunc(guard.LoginPath, authHandler.LoginPage).Methods("GET")
	pages.Handle(guard.LoginPath, limited(authHandler.Login)).Methods("POST")
	pages.HandleFunc("/register", authHandler.RegisterPage).Methods("GET")
	pages.Handle("/register", limited(authHandler.Register)).Methods("POST")
	pages.HandleFunc("/logout", authHandler.Logout).Methods("POST")

	private := pages.PathPrefix("").Subrouter()
	private.Use(guards.Require(guard.Private))
	private.HandleFunc("/checkout/{id}", checkoutHandler.Confirm).Methods("GET")
	private.Handle("/checkout/{id}", limited(checkoutHandler.Pay)).Methods("POST")
	private.HandleFunc("/payment-success", checkoutHandler.PaymentSuccess).Methods("GET")
	private.HandleFunc("/dashboard", dashboardHandler.Home).Methods("GET")
	private.HandleFunc("/dashboard/profile", dashboardHandler.ProfilePage).Methods("GET")
	private.HandleFunc("/dashboard/profile", dashboardHandler.UpdateProfile).Methods("POST")

	user := pages.PathPrefix("/dashboard").Subrouter()
	user.Use(guards.Require(guard.User))
	user.HandleFunc("/myOrders", dashboardHandler.MyOrders).Methods("GET")
	user.HandleFunc("/myOrders/{id}/delete", dashboardHandler.DeleteOrder).Methods("POST")
	user.HandleFunc("/paymentHistory", dashboardHandler.PaymentHistory).Methods("GET")
	user.HandleFunc("/review/{id}", dashboardHandler.ReviewPage).Methods("GET")
	user.HandleFunc("/review/{id}", dashboardHandler.SubmitReview).Methods("POST")

	admin := pages.PathPrefix("/dashboard").Subrouter()
	admin.Use(guards.Require(guard.Admin))
	admin.HandleFunc("/allUsers", adminHandler.Users).Methods("GET")
	admin.HandleFunc("/allUsers/role", adminHandler.ChangeRole).Methods("POST")
	admin.HandleFunc("/allProducts", adminHandler.Products).Methods("GET")
	admin.HandleFunc("/allProducts/{id}/delete", adminHandler.DeleteProduct).Methods("POST")
	admin.HandleFunc("/addProducts", adminHandler.NewProduct).Methods("GET")
	admin.HandleFunc("/addProducts", adminHandler.CreateProduct).Methods("POST")
	admin.HandleFunc("/editProduct/{id}", adminHandler.EditProduct).Methods("GET")
	admin.HandleFunc("/editProduct/{id}", adminHandler.UpdateProduct).Methods("POST")
	admin.HandleFunc("/allOrders", adminHandler.Orders).Methods("GET")
	admin.HandleFunc("/allOrders/{id}/deliver", adminHandler.DeliverOrder).Methods("POST")
	admin.HandleFunc("/allPayments", adminHandler.Payments).Methods("GET")

	r.NotFoundHandler = sessionMW(http.HandlerFunc(pageHandler.NotFound))

	return r, nil
}

// Warm probes the backend once so a misconfigured BACKEND_URL shows up in
// the startup logs.
func Warm(ctx context.Context, backend *apiclient.Backend, logger zerolog.Logger) {
	if _, err := backend.Client().ProductsPage(ctx, 0); err != nil {
		logger.Warn().Err(err).Msg("Backend did not answer the startup probe")
		return
	}
	logger.Info().Msg("Backend reachable")
}
