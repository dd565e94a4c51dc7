package reset

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
	"github.com/nkiryanov/authkeeper/internal/logger"
	"github.com/nkiryanov/authkeeper/internal/models"
	"github.com/nkiryanov/authkeeper/internal/notify"
	"github.com/nkiryanov/authkeeper/internal/repository"
	"github.com/nkiryanov/authkeeper/internal/service/account"
)

const (
	defaultTokenTTL = time.Hour
	resetPath       = "reset-password"
	emailSubject    = "Reset your password"
)

//go:embed templates/*.html
var templatesFS embed.FS

var emailTemplate = template.Must(template.ParseFS(templatesFS, "templates/reset_email.html"))

type limiter interface {
	Allow(ctx context.Context, subject string) error
}

type Config struct {
	// Public address of the site, reset link is built on it
	// Required to be set
	BaseURL string

	// Reset token lifetime, default one hour
	TTL time.Duration

	// Optional per identifier limiter of reset requests
	Limiter limiter

	// Clock, time.Now if not set
	Now func() time.Time
}

// Reset service issues and consumes single use password reset tokens
type ResetService struct {
	accounts *account.AccountService
	storage  repository.Storage
	mailer   notify.Mailer
	limiter  limiter
	logger   logger.Logger

	baseURL *url.URL
	ttl     time.Duration
	now     func() time.Time
}

func NewService(cfg Config, accounts *account.AccountService, storage repository.Storage, mailer notify.Mailer, l logger.Logger) (*ResetService, error) {
	if accounts == nil || storage == nil || mailer == nil || l == nil {
		return nil, errors.New("accounts, storage, mailer and logger are required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute, got %q", cfg.BaseURL)
	}

	if cfg.TTL == 0 {
		cfg.TTL = defaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &ResetService{
		accounts: accounts,
		storage:  storage,
		mailer:   mailer,
		limiter:  cfg.Limiter,
		logger:   l,
		baseURL:  base,
		ttl:      cfg.TTL,
		now:      cfg.Now,
	}, nil
}

// Issue reset token for account and mail the link to its owner
// Unknown or rate limited identifiers return nil as well, caller must not tell them apart
func (s *ResetService) RequestReset(ctx context.Context, identifier string) error {
	identifier = strings.TrimSpace(identifier)

	if s.limiter != nil {
		err := s.limiter.Allow(ctx, identifier)
		switch {
		case errors.Is(err, apperrors.ErrRateLimited):
			s.logger.Warn("Reset request rate limited")
			return nil
		case err != nil:
			s.logger.Error("Rate limiter unavailable, request allowed", "error", err)
		}
	}

	acc, err := s.accounts.FindByIdentifier(ctx, identifier)
	switch {
	case errors.Is(err, apperrors.ErrAccountNotFound):
		s.logger.Debug("Reset requested for unknown identifier")
		return nil
	case err != nil:
		return fmt.Errorf("can't request reset. Err: %w", err)
	}

	raw, digest, err := generateToken()
	if err != nil {
		return err
	}

	now := s.now().Truncate(time.Second)
	token, err := s.storage.ResetToken().Save(ctx, models.ResetToken{
		ID:        uuid.New(),
		AccountID: acc.ID,
		TokenHash: digest,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		UsedAt:    nil,
	})
	if err != nil {
		return fmt.Errorf("can't save reset token. Err: %w", err)
	}

	msg, err := s.message(acc, raw)
	if err != nil {
		return err
	}

	// Token stays valid even if delivery failed, user may request another one
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("Failed to deliver reset email", "account_id", acc.ID, "token_id", token.ID, "error", err)
		return nil
	}

	s.logger.Info("Reset token issued", "account_id", acc.ID, "token_id", token.ID, "expires_at", token.ExpiresAt)
	return nil
}

// Use reset token and replace account password
// Both happen in one transaction, so failure leaves token and password untouched
func (s *ResetService) ConsumeReset(ctx context.Context, rawToken string, newSecret string) error {
	if rawToken == "" {
		return apperrors.ErrResetTokenInvalid
	}
	if newSecret == "" {
		return errors.New("password must not be empty")
	}

	digest := Digest(rawToken)
	now := s.now()

	var token models.ResetToken
	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		var err error
		token, err = tx.ResetToken().Use(ctx, digest, now)
		if err != nil {
			return err
		}

		return s.accounts.WithStorage(tx).ReplaceSecret(ctx, token.AccountID, newSecret)
	})
	if err != nil {
		return fmt.Errorf("can't reset password. Err: %w", err)
	}

	s.logger.Info("Password reset", "account_id", token.AccountID, "token_id", token.ID)
	return nil
}

// Build reset email with link carrying raw token
func (s *ResetService) message(acc models.Account, raw string) (notify.Message, error) {
	link := s.baseURL.JoinPath(resetPath)
	link.RawQuery = url.Values{"token": {raw}}.Encode()

	var body bytes.Buffer
	err := emailTemplate.Execute(&body, struct {
		Name     string
		Link     string
		ValidFor string
	}{
		Name:     acc.FullName,
		Link:     link.String(),
		ValidFor: humanDuration(s.ttl),
	})
	if err != nil {
		return notify.Message{}, fmt.Errorf("can't render reset email. Err: %w", err)
	}

	return notify.Message{To: acc.Email, Subject: emailSubject, HTML: body.String()}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
