package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"funnelboard/internal/auth/password"
	"funnelboard/internal/auth/repository"
	"funnelboard/internal/auth/transport"
	"funnelboard/internal/events"
	"funnelboard/platform/apperr"
	"funnelboard/platform/config"
	"funnelboard/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Service struct {
	repo *repository.Repository
	cfg  config.AuthServiceConfig
	bus  events.Bus
	log  *logger.Logger
}

func New(repo *repository.Repository, cfg config.AuthServiceConfig, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, bus: bus, log: log}
}

// SignUp registers a new admin tenant.
func (s *Service) SignUp(ctx context.Context, req transport.SignUpRequest) (transport.AccountResponse, error) {
	hash, err := password.Hash(req.Password)
	if err != nil {
		return transport.AccountResponse{}, apperr.Wrap(apperr.KindInternal, "could not hash password", err)
	}

	account, err := s.repo.Create(ctx, repository.CreateAccountParams{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		Role:         "admin",
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return transport.AccountResponse{}, apperr.Conflict("email already registered")
	}
	if err != nil {
		return transport.AccountResponse{}, err
	}

	s.bus.Publish(ctx, events.UserSignedUp{
		BaseEvent: events.NewBaseEvent(),
		UserID:    account.ID,
		Email:     account.Email,
		Role:      account.Role,
	})

	s.log.Info("account created", "id", account.ID, "role", account.Role)
	return toAccountResponse(account), nil
}

// CreateOperational registers an operational sub-user under the calling admin.
// Operational users see the admin's leads, not their own.
func (s *Service) CreateOperational(ctx context.Context, adminID uuid.UUID, req transport.CreateOperationalRequest) (transport.AccountResponse, error) {
	hash, err := password.Hash(req.Password)
	if err != nil {
		return transport.AccountResponse{}, apperr.Wrap(apperr.KindInternal, "could not hash password", err)
	}

	account, err := s.repo.Create(ctx, repository.CreateAccountParams{
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:    hash,
		DisplayName:     req.DisplayName,
		Role:            "operational",
		CreatedByUserID: &adminID,
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return transport.AccountResponse{}, apperr.Conflict("email already registered")
	}
	if err != nil {
		return transport.AccountResponse{}, err
	}

	return toAccountResponse(account), nil
}

// SignIn verifies credentials and issues a token pair.
func (s *Service) SignIn(ctx context.Context, req transport.SignInRequest) (transport.TokenPairResponse, error) {
	account, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return transport.TokenPairResponse{}, apperr.Unauthorized("invalid credentials")
	}

	if err := password.Compare(account.PasswordHash, req.Password); err != nil {
		return transport.TokenPairResponse{}, apperr.Unauthorized("invalid credentials")
	}

	return s.issueTokens(ctx, account)
}

// Refresh rotates a refresh token and issues a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (transport.TokenPairResponse, error) {
	hash := hashToken(refreshToken)
	userID, expiresAt, err := s.repo.GetRefreshToken(ctx, hash)
	if err != nil {
		return transport.TokenPairResponse{}, apperr.Unauthorized("invalid refresh token")
	}

	_ = s.repo.RevokeRefreshToken(ctx, hash)

	if time.Now().After(expiresAt) {
		return transport.TokenPairResponse{}, apperr.Unauthorized("refresh token expired")
	}

	account, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return transport.TokenPairResponse{}, apperr.Unauthorized("invalid refresh token")
	}

	return s.issueTokens(ctx, account)
}

// SignOut revokes a refresh token.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	return s.repo.RevokeRefreshToken(ctx, hashToken(refreshToken))
}

// Me returns the calling account.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (transport.AccountResponse, error) {
	account, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return transport.AccountResponse{}, apperr.NotFound("account not found")
	}
	if err != nil {
		return transport.AccountResponse{}, err
	}
	return toAccountResponse(account), nil
}

// ListTeam returns the operational accounts under the calling admin.
func (s *Service) ListTeam(ctx context.Context, adminID uuid.UUID) (transport.AccountListResponse, error) {
	accounts, err := s.repo.ListOperational(ctx, adminID)
	if err != nil {
		return transport.AccountListResponse{}, err
	}

	out := make([]transport.AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, toAccountResponse(account))
	}
	return transport.AccountListResponse{Accounts: out}, nil
}

func (s *Service) issueTokens(ctx context.Context, account repository.Account) (transport.TokenPairResponse, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  account.ID.String(),
		"role": account.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.GetAccessTokenTTL()).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.GetJWTAccessSecret()))
	if err != nil {
		return transport.TokenPairResponse{}, err
	}

	refresh, err := randomToken(32)
	if err != nil {
		return transport.TokenPairResponse{}, err
	}

	expiresAt := now.Add(s.cfg.GetRefreshTokenTTL())
	if err := s.repo.SaveRefreshToken(ctx, account.ID, hashToken(refresh), expiresAt); err != nil {
		return transport.TokenPairResponse{}, err
	}

	return transport.TokenPairResponse{AccessToken: access, RefreshToken: refresh}, nil
}

func toAccountResponse(account repository.Account) transport.AccountResponse {
	return transport.AccountResponse{
		ID:              account.ID,
		Email:           account.Email,
		DisplayName:     account.DisplayName,
		Role:            account.Role,
		CreatedByUserID: account.CreatedByUserID,
		CreatedAt:       account.CreatedAt,
	}
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
