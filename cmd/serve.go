package cmd

import (
	"context"
	"net"

	"github.com/vibast-solutions/ms-go-accounts/app/controller"
	"github.com/vibast-solutions/ms-go-accounts/app/database"
	"github.com/vibast-solutions/ms-go-accounts/app/firebase"
	accountsgrpc "github.com/vibast-solutions/ms-go-accounts/app/grpc"
	"github.com/vibast-solutions/ms-go-accounts/app/mailer"
	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/repository"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  `Start both HTTP (Echo) and gRPC servers for the accounts service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := database.Open(context.Background(), cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	templates, err := mailer.NewTemplates()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load email templates")
	}
	verifier := firebase.NewVerifier(cfg.Firebase)
	defer verifier.Close()

	accountService := service.NewAccountService(
		db,
		repository.NewUserRepository(db),
		repository.NewVerificationCodeRepository(db),
		repository.NewBlacklistedTokenRepository(db),
		verifier,
		mailer.New(cfg.SMTP),
		templates,
		cfg,
	)

	go startGRPCServer(cfg, accountService)

	startHTTPServer(cfg, accountService)
}

func startHTTPServer(cfg *config.Config, accountService service.AccountService) {
	e := echo.New()
	defer e.Close()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	registerRoutes(e, accountService)

	httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}

func registerRoutes(e *echo.Echo, accountService service.AccountService) {
	accountController := controller.NewAccountController(accountService)
	authMiddleware := middleware.NewAuthMiddleware(accountService)

	auth := e.Group("/auth")
	auth.POST("/register", accountController.Register)
	auth.POST("/verify-email", accountController.VerifyEmail)
	auth.POST("/resend-verification-code", accountController.ResendVerificationCode)
	auth.POST("/login", accountController.Login)
	auth.POST("/refresh-token", accountController.RefreshToken)
	auth.POST("/logout", accountController.Logout)
	auth.POST("/request-password-reset", accountController.RequestPasswordReset)
	auth.GET("/reset-password/:uidb64/:token", accountController.CheckResetToken)
	auth.PATCH("/password-reset-complete", accountController.SetNewPassword)
	auth.POST("/firebase-login", accountController.FederatedLogin)
	auth.POST("/validate-token", accountController.ValidateToken)

	authProtected := auth.Group("")
	authProtected.Use(authMiddleware.RequireAuth)
	authProtected.GET("/me", accountController.Me)
}

func startGRPCServer(cfg *config.Config, accountService service.AccountService) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(accountsgrpc.LoggingUnaryInterceptor()))
	defer grpcServer.GracefulStop()
	accountsgrpc.RegisterAccountServiceServer(grpcServer, accountsgrpc.NewAccountServer(accountService))

	logrus.WithField("addr", grpcAddr).Info("Starting gRPC server")
	if err := grpcServer.Serve(lis); err != nil {
		logrus.WithError(err).Fatal("Failed to start gRPC server")
	}
}
