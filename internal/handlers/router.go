package handlers

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/handlers/middleware"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/service/account"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type RouterConfig struct {
	// Origins allowed to make cross origin requests
	AllowedOrigins []string

	// Directory with static pages (reset-password.html), not served if empty
	StaticDir string
}

func NewRouter(
	cfg RouterConfig,
	accountService accountService,
	resetService resetService,
	tokenManager tokenManager,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(tokenManager)

	apiauth := http.NewServeMux()
	apiauth.Handle("POST /register", handleRegister(accountService, logger))
	apiauth.Handle("POST /login", handleLogin(accountService, tokenManager, logger))
	apiauth.Handle("POST /forgot-password", handleForgotPassword(resetService, logger))
	apiauth.Handle("POST /reset-password", handleResetPassword(resetService, logger))

	apiprofile := http.NewServeMux()
	apiprofile.Handle("GET /me", withAuth(handleProfileMe(accountService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("/api/profile/", http.StripPrefix("/api/profile", apiprofile))

	if cfg.StaticDir != "" {
		root.Handle("GET /reset-password", handleStaticFile(filepath.Join(cfg.StaticDir, "reset-password.html")))
		root.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
		middleware.CORS(cfg.AllowedOrigins),
	)

	return handler
}

type accountService interface {
	// Register account
	// Has to return apperrors.ErrAccountAlreadyExists if email or member id is taken
	// Has to return apperrors.ErrRoleInvalid or apperrors.ErrStatusInvalid on unknown role or status
	Register(ctx context.Context, params account.RegisterParams) (models.Account, error)

	// Login by email or member id
	// Has to return apperrors.ErrInvalidCredentials both on unknown identifier and wrong password
	Login(ctx context.Context, identifier string, password string) (models.Account, error)

	// Has to return apperrors.ErrAccountNotFound if account not found
	GetByID(ctx context.Context, id uuid.UUID) (models.Account, error)
}

type resetService interface {
	// Has to return nil for unknown identifiers as for known ones
	RequestReset(ctx context.Context, identifier string) error

	// If token unknown, expired or used has to return apperrors.ErrResetTokenInvalid,
	// apperrors.ErrResetTokenExpired or apperrors.ErrResetTokenUsed
	ConsumeReset(ctx context.Context, token string, password string) error
}

type tokenManager interface {
	GenerateAccess(account models.Account) (models.IssuedToken, error)
	ParseAccess(access string) (uuid.UUID, error)
}
