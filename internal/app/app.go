package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Evgen-Mutagen/payments-backend/internal/controller"
	"github.com/Evgen-Mutagen/payments-backend/internal/metrics"
	"github.com/Evgen-Mutagen/payments-backend/internal/middlewareinternal"
	"github.com/Evgen-Mutagen/payments-backend/internal/repository"
	"github.com/Evgen-Mutagen/payments-backend/internal/repository/memory"
	"github.com/Evgen-Mutagen/payments-backend/internal/service"
	"github.com/Evgen-Mutagen/payments-backend/internal/validator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg    *Config
	Router *chi.Mux
	db     *repository.Database
	store  repository.Store
	Logger *zap.Logger
	Server *http.Server
}

// New builds the application on Postgres when a database URI is configured
// and on the in-memory store otherwise.
func New(cfg *Config, logger *zap.Logger) (*App, error) {
	app := &App{
		cfg:    cfg,
		Router: chi.NewRouter(),
		Logger: logger,
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	app.initRouter()
	return app, nil
}

func newWithStore(cfg *Config, store repository.Store, logger *zap.Logger) *App {
	app := &App{
		cfg:    cfg,
		Router: chi.NewRouter(),
		store:  store,
		Logger: logger,
	}
	app.initRouter()
	return app
}

func (a *App) initStore() error {
	if a.cfg.DatabaseURI == "" {
		a.Logger.Warn("DATABASE_URI is empty, using the in-memory store; data is lost on restart")
		a.store = memory.NewStore()
		return nil
	}

	db, err := repository.NewDatabase(repository.DatabaseConfig{
		DSN:            a.cfg.DatabaseURI,
		MigrationsPath: a.cfg.MigrationsPath,
	})
	if err != nil {
		a.Logger.Error("Database initialization failed",
			zap.String("dsn", a.cfg.MaskDBPassword()),
			zap.Error(err))
		return fmt.Errorf("database initialization failed: %w", err)
	}

	a.db = db
	a.store = repository.NewPostgresStore(db)
	a.Logger.Info("Database initialized successfully",
		zap.String("dsn", a.cfg.MaskDBPassword()),
		zap.String("migrations_path", a.cfg.MigrationsPath))

	return nil
}

func (a *App) initRouter() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(middlewareinternal.RequestLogger(a.Logger))
	a.Router.Use(middlewareinternal.Recoverer(a.Logger))
	a.Router.Use(metrics.InstrumentHandler)
	a.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.cfg.AllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Services
	authService := service.NewAuthService(service.AuthConfig{
		SecretKey:  a.cfg.JWTSecretKey,
		TokenTTL:   a.cfg.TokenTTL,
		BcryptCost: a.cfg.BcryptCost,
	})
	userService := service.NewUserService(a.store, authService, service.UserServiceConfig{
		SearchLimit: a.cfg.SearchLimit,
		SeedBalance: service.RandomSeedBalance(a.cfg.SeedBalanceMax),
	}, a.Logger)
	accountService := service.NewAccountService(a.store, a.Logger)

	// Controllers
	v := validator.New()
	userController := controller.NewUserController(userService, v, a.Logger)
	accountController := controller.NewAccountController(accountService, v, a.Logger)

	a.Router.HandleFunc("/", controller.Health)
	a.Router.Method(http.MethodGet, "/metrics", metrics.Handler())

	a.Router.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/user/signup", userController.Signup)
		r.Post("/user/signin", userController.Signin)
		r.Post("/user/reset-password", userController.ResetPassword)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middlewareinternal.JWTAuthMiddleware(authService))

			r.Put("/user/update", userController.Update)
			r.Get("/user/search", userController.Search)
			r.Get("/account/balance", accountController.GetBalance)
			r.Post("/account/transfer", accountController.Transfer)
		})
	})

	a.Router.NotFound(controller.NotFound)
	a.Router.MethodNotAllowed(controller.NotFound)
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	a.Server = &http.Server{
		Addr:              a.cfg.RunAddress,
		Handler:           a.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Starting HTTP server", zap.String("address", a.cfg.RunAddress))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		a.Logger.Info("Shutting down server...")
	}

	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.Server.Shutdown(ctx)
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}
