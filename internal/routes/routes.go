package routes

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ukuvago/angelmatch/internal/config"
	"github.com/ukuvago/angelmatch/internal/database"
	"github.com/ukuvago/angelmatch/internal/handlers"
	"github.com/ukuvago/angelmatch/internal/middleware"
	"github.com/ukuvago/angelmatch/internal/services"
)

// App is the wired HTTP service. Close stops background work once the server has drained.
type App struct {
	Router *gin.Engine
	Auth   *services.AuthService

	notifier *services.NotificationService
	limiter  *middleware.RateLimiter
	stop     chan struct{}
}

// Services groups what the router needs. Tests build it directly with fakes.
type Services struct {
	Auth        *services.AuthService
	NDA         *services.NDAService
	Payment     *services.PaymentService
	Entitlement *services.EntitlementService
	SAFENotes   *services.SAFENoteService
	Meetings    *services.MeetingService
	Commissions *services.CommissionService
	Projects    *services.ProjectService
	Audit       *services.AuditService
	Documents   *services.DocumentService
	Storage     *services.StorageService
	Idempotency services.IdempotencyStore
}

// NewServices builds the production service graph.
func NewServices(ctx context.Context, cfg *config.Config, notifier services.Notifier) (*Services, error) {
	storage, err := services.NewStorageService(ctx, cfg)
	if err != nil {
		return nil, err
	}
	audit := services.NewAuditService()
	docs := services.NewDocumentService(cfg)
	commissions := services.NewCommissionService(audit)

	return &Services{
		Auth:        services.NewAuthService(cfg),
		NDA:         services.NewNDAService(cfg, audit),
		Payment:     services.NewPaymentService(cfg, audit),
		Entitlement: services.NewEntitlementService(audit),
		SAFENotes:   services.NewSAFENoteService(cfg, audit, docs, storage, notifier),
		Meetings:    services.NewMeetingService(audit, notifier),
		Commissions: commissions,
		Projects:    services.NewProjectService(audit, notifier),
		Audit:       audit,
		Documents:   docs,
		Storage:     storage,
		Idempotency: services.NewIdempotencyStore(ctx, cfg),
	}, nil
}

// SetupApp wires services, notifier and limiter for the running server.
func SetupApp(ctx context.Context, cfg *config.Config) (*App, error) {
	notifier := services.NewNotificationService(cfg, services.NewEmailService(cfg))
	svc, err := NewServices(ctx, cfg, notifier)
	if err != nil {
		return nil, err
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	app := &App{
		Router:   SetupRouter(cfg, svc, limiter),
		Auth:     svc.Auth,
		notifier: notifier,
		limiter:  limiter,
		stop:     make(chan struct{}),
	}
	go limiter.Janitor(app.stop)
	return app, nil
}

// Close stops the limiter janitor and waits for queued notifications.
func (a *App) Close() {
	close(a.stop)
	a.notifier.Wait()
}

func SetupRouter(cfg *config.Config, svc *Services, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), middleware.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.IdempotencyHeader},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", middleware.ReplayedHeader},
		AllowCredentials: true,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"db_connected": database.GetDB() != nil,
		})
	})

	if cfg.StorageBackend != "s3" {
		router.Static("/uploads", cfg.UploadDir)
	}

	authHandler := handlers.NewAuthHandler(svc.Auth)
	ndaHandler := handlers.NewNDAHandler(svc.Auth, svc.NDA, svc.Documents)
	paymentHandler := handlers.NewPaymentHandler(svc.Payment)
	projectHandler := handlers.NewProjectHandler(svc.Storage, svc.Entitlement)
	offerHandler := handlers.NewOfferHandler(svc.SAFENotes)
	meetingHandler := handlers.NewMeetingHandler(svc.Meetings)
	investorHandler := handlers.NewInvestorHandler(svc.Entitlement)
	commissionHandler := handlers.NewCommissionHandler(svc.Commissions)
	adminHandler := handlers.NewAdminHandler(svc.Projects, svc.Commissions, svc.Audit)

	authRequired := middleware.AuthMiddleware(svc.Auth)
	idem := middleware.Idempotency(svc.Idempotency)
	requireNDA := middleware.RequireValidNDA(svc.NDA)

	api := router.Group("/api")
	api.Use(func(c *gin.Context) {
		if database.GetDB() == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Service initializing, please try again shortly",
				"code":  "unavailable",
			})
			return
		}
		c.Next()
	})

	// Stripe calls this; the signature is the authentication.
	api.POST("/payments/webhook", paymentHandler.Webhook)

	// Buckets are per user when a valid token is present, per client IP otherwise.
	api.Use(middleware.OptionalAuthMiddleware(svc.Auth), limiter.Handler())
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)

			authProtected := auth.Group("")
			authProtected.Use(authRequired)
			{
				authProtected.GET("/me", authHandler.GetCurrentUser)
				authProtected.PUT("/profile", authHandler.UpdateProfile)
				authProtected.POST("/change-password", authHandler.ChangePassword)
			}
		}

		api.GET("/categories", projectHandler.GetCategories)

		projects := api.Group("/projects")
		{
			projects.GET("", projectHandler.ListProjects)
			projects.GET("/:id", middleware.CheckProjectAccess(svc.Entitlement), projectHandler.GetProject)

			investor := projects.Group("/:id")
			investor.Use(authRequired, middleware.RequireInvestor())
			{
				investor.GET("/access", projectHandler.GetAccess)
				investor.POST("/unlock", idem, projectHandler.Unlock)
				investor.GET("/addendum", ndaHandler.GetAddendum)
				investor.POST("/addendum/sign", requireNDA, idem, ndaHandler.SignAddendum)
				investor.GET("/addendum/download", ndaHandler.DownloadAddendum)
			}
		}

		developer := api.Group("/developer")
		developer.Use(authRequired, middleware.RequireDeveloper())
		{
			developer.GET("/projects", projectHandler.GetMyProjects)
			developer.POST("/projects", idem, projectHandler.CreateProject)
			developer.PUT("/projects/:id", projectHandler.UpdateProject)
			developer.POST("/projects/:id/submit", projectHandler.SubmitProject)
			developer.PUT("/projects/:id/nda-config", projectHandler.UpdateNDAConfig)
			developer.POST("/projects/:id/logo", projectHandler.UploadLogo)
			developer.POST("/projects/:id/pitch-deck", projectHandler.UploadPitchDeck)
			developer.POST("/projects/:id/images", projectHandler.UploadProjectImage)
			developer.DELETE("/projects/:id/images/:imageId", projectHandler.DeleteProjectImage)
		}

		nda := api.Group("/nda")
		nda.Use(authRequired, middleware.RequireInvestor())
		{
			nda.GET("/template", ndaHandler.GetNDATemplate)
			nda.GET("/status", ndaHandler.GetNDAStatus)
			nda.POST("/sign", idem, ndaHandler.SignNDA)
			nda.GET("/download", ndaHandler.DownloadNDA)
		}

		payments := api.Group("/payments")
		payments.Use(authRequired, middleware.RequireInvestor())
		{
			payments.GET("/packages", paymentHandler.GetPackages)
			payments.GET("/status", paymentHandler.GetPaymentStatus)
			payments.GET("/history", paymentHandler.GetPaymentHistory)
			payments.POST("/checkout", requireNDA, idem, paymentHandler.CreateCheckout)
			payments.POST("/intent", requireNDA, idem, paymentHandler.CreatePaymentIntent)
			payments.POST("/confirm", idem, paymentHandler.ConfirmPayment)
		}

		investor := api.Group("/investor")
		investor.Use(authRequired, middleware.RequireInvestor())
		{
			investor.GET("/dashboard", investorHandler.GetDashboard)
			investor.GET("/unlocks", investorHandler.GetUnlockedProjects)
		}

		notes := api.Group("/safe-notes")
		notes.Use(authRequired)
		{
			notes.POST("", middleware.RequireInvestor(), requireNDA, idem, offerHandler.CreateOffer)
			notes.GET("", offerHandler.GetMyOffers)
			notes.GET("/:id", offerHandler.GetOffer)
			notes.PUT("/:id", middleware.RequireInvestor(), offerHandler.UpdateOffer)
			notes.POST("/:id/send", middleware.RequireInvestor(), idem, offerHandler.SendOffer)
			notes.POST("/:id/sign", idem, offerHandler.SignOffer)
			notes.POST("/:id/execute", middleware.RequireAdmin(), idem, offerHandler.ExecuteOffer)
			notes.POST("/:id/cancel", idem, offerHandler.CancelOffer)
			notes.GET("/:id/download", offerHandler.DownloadOffer)
		}

		meetings := api.Group("/meetings")
		meetings.Use(authRequired)
		{
			meetings.POST("", middleware.RequireInvestor(), idem, meetingHandler.RequestMeeting)
			meetings.GET("", meetingHandler.ListMeetings)
			meetings.GET("/:id", meetingHandler.GetMeeting)
			meetings.POST("/:id/accept", idem, meetingHandler.AcceptMeeting)
			meetings.POST("/:id/decline", idem, meetingHandler.DeclineMeeting)
			meetings.POST("/:id/complete", idem, meetingHandler.CompleteMeeting())
			meetings.POST("/:id/no-show", idem, meetingHandler.NoShowMeeting())
			meetings.POST("/:id/cancel", idem, meetingHandler.CancelMeeting())
			meetings.GET("/:id/messages", meetingHandler.GetMessages)
			meetings.POST("/:id/messages", idem, meetingHandler.SendMessage)
		}

		api.GET("/messages/unread-count", authRequired, meetingHandler.UnreadCount)

		admin := api.Group("/admin")
		admin.Use(authRequired, middleware.RequireAdmin())
		{
			admin.GET("/stats", adminHandler.GetDashboardStats)
			admin.GET("/users", adminHandler.ListAllUsers)
			admin.GET("/projects", adminHandler.ListAllProjects)
			admin.GET("/projects/pending", adminHandler.GetPendingProjects)
			admin.POST("/projects/:id/approve", adminHandler.ApproveProject)
			admin.GET("/safe-notes", adminHandler.ListAllOffers)
			admin.GET("/payments", adminHandler.ListAllPayments)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
			admin.POST("/categories", adminHandler.CreateCategory)
			admin.PUT("/categories/:id", adminHandler.UpdateCategory)
			admin.DELETE("/categories/:id", adminHandler.DeleteCategory)

			admin.GET("/commissions", commissionHandler.ListCommissions)
			admin.GET("/commissions/summary", commissionHandler.GetSummary)
			admin.POST("/commissions/:id/mark-paid", idem, commissionHandler.MarkPaid)
		}
	}

	return router
}
