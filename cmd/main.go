package main

import (
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"kost-service/internal/billing"
	"kost-service/internal/handler"
	"kost-service/internal/middleware"
	"kost-service/internal/model"
	"kost-service/internal/realtime"
	"kost-service/internal/subscription"
	"kost-service/pkg/config"
	"kost-service/pkg/database"
	"kost-service/pkg/jwtutil"
	"kost-service/pkg/logger"
	"kost-service/pkg/mailer"
	"kost-service/pkg/storage"
	"kost-service/prometheus"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kost-service",
		Short: "Boarding house rental management service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "seed-plans",
		Short: "Insert or update the stock subscription plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeedPlans()
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads configuration and brings up logging and the database
func bootstrap() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger.InitLogger(cfg)

	// InitDB runs migrations as part of connecting
	if err := database.InitDB(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe() error {
	cfg, err := bootstrap()
	if err != nil {
		panic("Failed to start: " + err.Error())
	}

	log := logger.GetLogger()
	log.Info("Starting kost service...", zap.String("environment", cfg.Server.Env))

	db := database.GetDB()
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)

	// Shared services
	features := subscription.NewResolver(db)
	limits := subscription.NewLimitChecker(db)
	hub := realtime.NewHub()
	mail := mailer.New(cfg.SMTP)
	images := storage.NewClient(cfg.Storage)
	billingJob := billing.NewJob(db, mail, hub, cfg.Job.DefaultReminderDays)

	// Handlers
	authHandler := handler.NewAuthHandler(db)
	propertyHandler := handler.NewPropertyHandler(db, limits, features, hub)
	roomHandler := handler.NewRoomHandler(db, limits, hub)
	roomTypeHandler := handler.NewRoomTypeHandler(db)
	tenantHandler := handler.NewTenantHandler(db, hub)
	paymentHandler := handler.NewPaymentHandler(db, hub)
	maintenanceHandler := handler.NewMaintenanceHandler(db, hub)
	notificationHandler := handler.NewNotificationHandler(db)
	subscriptionHandler := handler.NewSubscriptionHandler(db, features)
	settingsHandler := handler.NewSettingsHandler(db)
	marketplaceHandler := handler.NewMarketplaceHandler(db)
	reportHandler := handler.NewReportHandler(db, features)
	uploadHandler := handler.NewUploadHandler(images)
	chatHandler := handler.NewChatHandler(db, hub)
	jobHandler := handler.NewJobHandler(billingJob)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.GET("/ws", hub.Handler())

	// Public marketplace - read-only listings for seekers
	marketplace := e.Group("/marketplace")
	marketplace.GET("/properties", marketplaceHandler.List)
	marketplace.GET("/properties/:id", marketplaceHandler.Get)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Job routes - guarded by the shared job token, not user auth
	jobs := e.Group("/jobs")
	jobs.Use(middleware.JobTokenMiddleware(cfg.Job.Token))
	jobs.POST("/billing-reminders", jobHandler.RunBillingReminders)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	// User profile
	users := api.Group("/users")
	users.GET("/profile", authHandler.GetProfile)
	users.PATCH("/profile", authHandler.UpdateProfile)
	users.POST("/change-password", authHandler.ChangePassword)

	// Settings
	api.GET("/settings", settingsHandler.Get)
	api.PUT("/settings", settingsHandler.Update)

	// Subscriptions
	api.GET("/plans", subscriptionHandler.ListPlans)
	api.GET("/subscription", subscriptionHandler.Current)
	api.POST("/subscription", subscriptionHandler.Subscribe)
	api.DELETE("/subscription", subscriptionHandler.Cancel)

	// Properties and nested resources
	properties := api.Group("/properties")
	properties.GET("", propertyHandler.List)
	properties.POST("", propertyHandler.Create)
	properties.GET("/:id", propertyHandler.Get)
	properties.PUT("/:id", propertyHandler.Update)
	properties.DELETE("/:id", propertyHandler.Delete)
	properties.PUT("/:id/marketplace", propertyHandler.SetMarketplace)

	properties.GET("/:id/rooms", roomHandler.ListByProperty)
	properties.POST("/:id/rooms", roomHandler.Create)

	properties.GET("/:id/room-types", roomTypeHandler.ListByProperty)
	properties.POST("/:id/room-types", roomTypeHandler.Create)

	properties.GET("/:id/tenants", tenantHandler.ListByProperty)
	properties.POST("/:id/tenants", tenantHandler.Create)

	properties.GET("/:id/payments", paymentHandler.ListByProperty)
	properties.POST("/:id/payments", paymentHandler.Create)

	properties.GET("/:id/maintenance", maintenanceHandler.ListByProperty)
	properties.POST("/:id/maintenance", maintenanceHandler.Create)

	properties.GET("/:id/chat", chatHandler.List)
	properties.POST("/:id/chat", chatHandler.Send)

	properties.GET("/:id/reports/financial", reportHandler.Financial)
	properties.GET("/:id/reports/export", reportHandler.Export)

	// Flat routes for items addressed by their own ID
	rooms := api.Group("/rooms")
	rooms.PUT("/:id", roomHandler.Update)
	rooms.PUT("/:id/status", roomHandler.SetStatus)
	rooms.DELETE("/:id", roomHandler.Delete)

	roomTypes := api.Group("/room-types")
	roomTypes.PUT("/:id", roomTypeHandler.Update)
	roomTypes.DELETE("/:id", roomTypeHandler.Delete)

	tenants := api.Group("/tenants")
	tenants.PUT("/:id", tenantHandler.Update)
	tenants.DELETE("/:id", tenantHandler.Delete)

	payments := api.Group("/payments")
	payments.POST("/:id/pay", paymentHandler.MarkPaid)
	payments.PUT("/:id", paymentHandler.Update)
	payments.DELETE("/:id", paymentHandler.Delete)

	maintenance := api.Group("/maintenance")
	maintenance.PUT("/:id", maintenanceHandler.Update)
	maintenance.DELETE("/:id", maintenanceHandler.Delete)

	notifications := api.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.PUT("/:id/read", notificationHandler.MarkRead)
	notifications.PUT("/read-all", notificationHandler.MarkAllRead)
	notifications.DELETE("/:id", notificationHandler.Delete)

	// Image uploads
	api.POST("/uploads", uploadHandler.Upload)
	api.DELETE("/uploads", uploadHandler.Delete)

	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
	return nil
}

// runSeedPlans upserts the three stock subscription plans
func runSeedPlans() error {
	_, err := bootstrap()
	if err != nil {
		panic("Failed to start: " + err.Error())
	}

	log := logger.GetLogger()
	db := database.GetDB()

	plans := []model.SubscriptionPlan{
		{
			Name:                "basic",
			Price:               0,
			MaxProperties:       1,
			MaxRoomsPerProperty: 10,
			Features: datatypes.JSONMap{
				subscription.FeatureTenantData:          true,
				subscription.FeatureMaintenanceTracking: true,
			},
		},
		{
			Name:                "standard",
			Price:               99000,
			MaxProperties:       3,
			MaxRoomsPerProperty: 30,
			Features: datatypes.JSONMap{
				subscription.FeatureTenantData:          true,
				subscription.FeatureMaintenanceTracking: true,
				subscription.FeatureMarketplaceListing:  true,
				subscription.FeatureAutoBilling:         true,
				subscription.FeatureFinancialReports:    "basic",
			},
		},
		{
			Name:                "premium",
			Price:               249000,
			MaxProperties:       10,
			MaxRoomsPerProperty: 100,
			Features: datatypes.JSONMap{
				subscription.FeatureTenantData:          true,
				subscription.FeatureMaintenanceTracking: true,
				subscription.FeatureMarketplaceListing:  true,
				subscription.FeatureAutoBilling:         true,
				subscription.FeatureDataExport:          true,
				subscription.FeatureFinancialReports:    "predictive",
			},
		},
	}

	for _, plan := range plans {
		var existing model.SubscriptionPlan
		err := db.Where("name = ?", plan.Name).First(&existing).Error
		if err == nil {
			plan.ID = existing.ID
			if err := db.Save(&plan).Error; err != nil {
				return err
			}
			log.Info("Updated plan", zap.String("name", plan.Name))
			continue
		}
		if err := db.Create(&plan).Error; err != nil {
			return err
		}
		log.Info("Created plan", zap.String("name", plan.Name))
	}

	return nil
}
