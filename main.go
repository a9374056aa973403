package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"autoparts/internal/cache"
	"autoparts/internal/config"
	"autoparts/internal/database"
	"autoparts/internal/handlers"
	"autoparts/internal/logger"
	"autoparts/internal/mailer"
	"autoparts/internal/middleware"
	"autoparts/internal/models"
)

var (
	catalogRoles    = []string{models.RoleAdmin, models.RoleSeller}
	staffRoles      = []string{models.RoleEmployee, models.RoleOnlineEmployee}
	orderStaffRoles = []string{models.RoleAdmin, models.RoleSeller, models.RoleOnlineEmployee}
	backOfficeRoles = []string{models.RoleAdmin, models.RoleSeller, models.RoleEmployee, models.RoleOnlineEmployee}
)

type services struct {
	db           *mongo.Database
	cfg          config.Config
	cache        *cache.Cache
	mail         mailer.Notifier
	uploads      *handlers.UploadStore
	tokens       handlers.TokenConfig
	loginLimiter gin.HandlerFunc
}

func main() {
	cfg := config.MustLoad()
	gin.SetMode(cfg.GinMode)

	log := logger.New(os.Stdout, cfg.GinMode, cfg.LogLevel)
	logrus.SetOutput(log.Out)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(log.GetLevel())

	client, err := database.Connect(context.Background(), cfg.MongoURI)
	if err != nil {
		log.WithError(err).Fatal("mongo connection failed")
	}
	db := client.Database(cfg.DBName)
	log.WithField("db", db.Name()).Info("MongoDB connected")

	database.EnsureIndexes(db, log)

	catalogCache, err := cache.New(context.Background(), cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CatalogCacheDuration(),
	})
	if err != nil {
		log.WithError(err).Warn("redis unavailable, catalog cache disabled")
		catalogCache = nil
	}

	if err := handlers.RegisterValidators(); err != nil {
		log.WithError(err).Fatal("validator registration failed")
	}

	loginLimiter, err := middleware.RateLimit(cfg.LoginRateLimit, catalogCache.Client())
	if err != nil {
		log.WithError(err).Fatal("login rate limiter")
	}

	svc := services{
		db:      db,
		cfg:     cfg,
		cache:   catalogCache,
		mail:    mailer.New(mailer.Config{Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Password: cfg.SMTPPassword, From: cfg.MailFrom}, log),
		uploads: handlers.NewUploadStore(cfg.UploadDir, cfg.StorefrontURL),
		tokens: handlers.TokenConfig{
			Secret:     cfg.JWTSecret,
			AccessTTL:  cfg.AccessTokenTTL(),
			RefreshTTL: cfg.RefreshTokenTTL(),
		},
		loginLimiter: loginLimiter,
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(svc, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if err := catalogCache.Close(); err != nil {
		log.WithError(err).Warn("redis close")
	}
	if err := client.Disconnect(ctx); err != nil {
		log.WithError(err).Warn("mongo disconnect")
	}
}

func newRouter(svc services, log *logrus.Logger) *gin.Engine {
	db, secret := svc.db, svc.cfg.JWTSecret
	guard := func(roles ...string) gin.HandlerFunc {
		return middleware.AuthGuard(secret, roles...)
	}

	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     svc.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "X-Cache"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Static("/uploads", svc.cfg.UploadDir)
	r.GET("/healthz", handlers.Health(db, svc.cache))

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", handlers.Register(db, svc.tokens))
		auth.POST("/:role/login", svc.loginLimiter, handlers.Login(db, svc.tokens))
		auth.POST("/refresh", handlers.Refresh(db, svc.tokens))
		auth.POST("/logout", handlers.Logout(db))
		auth.GET("/me", guard(), handlers.Me(db))
	}

	staff := api.Group("/staff", guard(models.RoleAdmin))
	{
		staff.POST("/:kind", handlers.CreateStaff(db))
		staff.GET("/:kind", handlers.ListStaff(db))
		staff.GET("/:kind/:id", handlers.GetStaff(db))
		staff.PUT("/:kind/:id", handlers.UpdateStaff(db))
		staff.DELETE("/:kind/:id", handlers.DeactivateStaff(db))
	}

	api.GET("/categories", handlers.GetCategories(db))
	api.GET("/products", handlers.GetProducts(db, svc.cache))
	api.GET("/products/low-stock", guard(backOfficeRoles...), handlers.GetLowStockProducts(db))
	api.GET("/products/:id", handlers.GetProduct(db))

	catalog := api.Group("", guard(catalogRoles...))
	{
		catalog.GET("/admin/categories", handlers.GetAllCategories(db))
		catalog.POST("/admin/categories", handlers.CreateCategory(db, svc.cache))
		catalog.PUT("/admin/categories/:id", handlers.UpdateCategory(db, svc.cache))
		catalog.DELETE("/admin/categories/:id", handlers.DeleteCategory(db, svc.cache))

		catalog.GET("/admin/products", handlers.GetAllProducts(db))
		catalog.POST("/products", handlers.CreateProduct(db, svc.uploads, svc.cache))
		catalog.PUT("/products/:id", handlers.UpdateProduct(db, svc.uploads, svc.cache))
		catalog.PATCH("/products/:id/stock", handlers.UpdateProductStock(db, svc.cache))
		catalog.POST("/products/:id/qrcode", handlers.RegenerateProductQRCode(db, svc.uploads))
		catalog.DELETE("/products/:id", handlers.DeleteProduct(db, svc.uploads, svc.cache))
	}

	user := api.Group("/user", guard(models.RoleUser))
	{
		user.PUT("/profile", handlers.UpdateProfile(db))
		user.GET("/cart", handlers.GetCart(db))
		user.PUT("/cart", handlers.ReplaceCart(db))
		user.DELETE("/cart", handlers.ClearCart(db))
		user.POST("/cart/items", handlers.AddCartItem(db))
		user.PATCH("/cart/items/:productId", handlers.SetCartItemQuantity(db))
		user.DELETE("/cart/items/:productId", handlers.RemoveCartItem(db))
	}

	orders := api.Group("/user-orders")
	{
		orders.POST("", guard(models.RoleUser), handlers.CreateOrder(db, svc.cache, svc.mail))
		orders.GET("/my", guard(models.RoleUser), handlers.GetMyOrders(db))
		orders.GET("", guard(orderStaffRoles...), handlers.ListOrders(db))
		orders.GET("/:id", guard(append([]string{models.RoleUser}, orderStaffRoles...)...), handlers.GetOrder(db))
		orders.PATCH("/:id/status", guard(orderStaffRoles...), handlers.UpdateOrderStatus(db, svc.cache, svc.mail))
		orders.PATCH("/:id/cancel", guard(models.RoleUser), handlers.CancelOrder(db, svc.cache))
		orders.DELETE("/:id", guard(models.RoleAdmin), handlers.DeleteOrder(db))
	}

	attendance := api.Group("/attendance")
	{
		clockRoles := append([]string{models.RoleAdmin}, staffRoles...)
		attendance.POST("/check-in", guard(clockRoles...), handlers.CheckIn(db))
		attendance.POST("/check-out", guard(clockRoles...), handlers.CheckOut(db))
		attendance.POST("", guard(models.RoleAdmin), handlers.UpsertAttendance(db))
		attendance.GET("", guard(models.RoleAdmin), handlers.ListAttendance(db))
		attendance.GET("/my", guard(staffRoles...), handlers.GetMyAttendance(db))
		attendance.GET("/today", guard(models.RoleAdmin), handlers.GetTodayAttendance(db))
	}

	salary := api.Group("/salary")
	{
		hours := svc.cfg.StandardWorkHours
		salary.GET("/monthly", guard(append([]string{models.RoleAdmin}, staffRoles...)...), handlers.GetMonthlySalary(db, hours))
		salary.POST("", guard(models.RoleAdmin), handlers.UpsertSalary(db, hours))
		salary.GET("", guard(models.RoleAdmin), handlers.ListSalaries(db))
		salary.GET("/my", guard(staffRoles...), handlers.GetMySalaries(db))
		salary.DELETE("/:id", guard(models.RoleAdmin), handlers.DeleteSalary(db))
	}

	leaves := api.Group("/leaves")
	{
		leaves.POST("", guard(staffRoles...), handlers.CreateLeave(db))
		leaves.GET("/my", guard(staffRoles...), handlers.GetMyLeaves(db))
		leaves.GET("", guard(models.RoleAdmin), handlers.ListLeaves(db))
		leaves.PATCH("/:id/approve", guard(models.RoleAdmin), handlers.ReviewLeave(db, svc.mail, models.LeaveStatusApproved))
		leaves.PATCH("/:id/reject", guard(models.RoleAdmin), handlers.ReviewLeave(db, svc.mail, models.LeaveStatusRejected))
		leaves.DELETE("/:id", guard(staffRoles...), handlers.DeleteLeave(db))
	}

	api.GET("/reviews", handlers.GetReviews(db))
	api.POST("/reviews", guard(models.RoleUser), handlers.CreateReview(db))
	api.DELETE("/reviews/:id", guard(models.RoleUser, models.RoleAdmin), handlers.DeleteReview(db))

	productReviews := api.Group("/product-reviews")
	{
		productReviews.GET("/product/:productId", handlers.GetProductReviews(db))
		productReviews.POST("", guard(models.RoleUser), handlers.CreateProductReview(db, svc.cache))
		productReviews.PUT("/:id", guard(models.RoleUser), handlers.UpdateProductReview(db, svc.cache))
		productReviews.DELETE("/:id", guard(models.RoleUser, models.RoleAdmin), handlers.DeleteProductReview(db, svc.cache))
	}

	api.POST("/messages", handlers.CreateMessage(db))
	messages := api.Group("/messages", guard(models.RoleAdmin, models.RoleOnlineEmployee))
	{
		messages.GET("", handlers.ListMessages(db))
		messages.PATCH("/:id/read", handlers.MarkMessageRead(db))
		messages.DELETE("/:id", handlers.DeleteMessage(db))
	}

	return r
}
