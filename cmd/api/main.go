package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/eduquiz-api/internal/config"
	"github.com/yourusername/eduquiz-api/internal/handler"
	"github.com/yourusername/eduquiz-api/internal/middleware"
	pgRepo "github.com/yourusername/eduquiz-api/internal/repository/postgres"
	"github.com/yourusername/eduquiz-api/internal/service"
	"github.com/yourusername/eduquiz-api/pkg/auth"
	"github.com/yourusername/eduquiz-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Redis only backs the per-IP limiter; without it the limiter fails open
	// and the store-backed limits still hold.
	rateLimiter := middleware.NewRateLimiter(nil)
	if cfg.Redis.Addr != "" {
		redisClient, err := database.NewRedisClient(database.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Printf("failed to connect to redis: %v, per-IP rate limiting disabled", err)
		} else {
			defer redisClient.Close()
			rateLimiter = middleware.NewRateLimiter(redisClient)
			log.Println("connected to redis")
		}
	}

	userRepo := pgRepo.NewUserRepo(db)
	challengeRepo := pgRepo.NewOTPChallengeRepo(db)

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs)
	if err != nil {
		log.Printf("failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	var emailSender service.EmailSender
	switch cfg.Email.Provider {
	case "resend":
		emailSender, err = service.NewResendEmailSender(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Printf("failed to initialize ResendEmailSender: %v", err)
			os.Exit(1)
		}
	default:
		emailSender = &service.NoopEmailSender{}
		log.Println("email provider is noop, codes are only logged")
	}

	lockoutEngine, err := service.NewLockoutEngine(userRepo)
	if err != nil {
		log.Printf("failed to initialize LockoutEngine: %v", err)
		os.Exit(1)
	}

	otpEngine, err := service.NewOTPEngine(
		challengeRepo,
		time.Duration(cfg.OTP.CodeTTLMinutes)*time.Minute,
		cfg.OTP.MaxVerifyAttempts,
		time.Duration(cfg.OTP.RateWindowMinutes)*time.Minute,
		cfg.OTP.MaxCodesPerWindow,
	)
	if err != nil {
		log.Printf("failed to initialize OTPEngine: %v", err)
		os.Exit(1)
	}

	verificationService, err := service.NewVerificationService(userRepo, otpEngine, emailSender)
	if err != nil {
		log.Printf("failed to initialize VerificationService: %v", err)
		os.Exit(1)
	}

	authService, err := service.NewAuthService(userRepo, lockoutEngine, jwtService, verificationService)
	if err != nil {
		log.Printf("failed to initialize AuthService: %v", err)
		os.Exit(1)
	}

	authHandler := handler.NewAuthHandler(authService, verificationService, cfg)
	authMiddleware := middleware.NewAuthMiddleware(jwtService)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	strictLimit := rateLimiter.Limit(middleware.StrictAuthRateLimitConfig())
	defaultLimit := rateLimiter.Limit(middleware.DefaultAuthRateLimitConfig())

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", strictLimit, authHandler.Register)
			authRoutes.POST("/login", strictLimit, authHandler.Login)
			authRoutes.POST("/verify-email/request", strictLimit, authHandler.RequestVerificationCode)
			authRoutes.POST("/verify-email/confirm", defaultLimit, authHandler.VerifyEmail)
			authRoutes.POST("/verify-email/resend", strictLimit, authHandler.RequestVerificationCode)
			authRoutes.POST("/forgot-password", strictLimit, authHandler.ForgotPassword)
			authRoutes.POST("/reset-password", defaultLimit, authHandler.ResetPassword)
			authRoutes.GET("/me", authMiddleware.RequireAuth(), authHandler.Me)
		}

		adminRoutes := api.Group("/admin")
		adminRoutes.Use(authMiddleware.RequireAuth(), authMiddleware.RequirePrivileged())
		{
			adminRoutes.POST("/users", authHandler.CreateUser)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("server stopped")
}
