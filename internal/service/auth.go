package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"blogapi/internal/crypto"
	"blogapi/internal/models"
	"blogapi/internal/repository"
	"blogapi/internal/token"
)

var ( // Define custom errors
	ErrDuplicateIdentity    = errors.New("user already exists")
	ErrUserNotFound         = repository.ErrUserNotFound
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrMissingToken         = errors.New("missing token")
	ErrInvalidToken         = token.ErrInvalidToken
	ErrExpiredToken         = token.ErrExpiredToken
	ErrRevokedToken         = errors.New("token has been revoked")
	ErrRefreshTokenRequired = errors.New("refresh token required")
	ErrAccessTokenRequired  = errors.New("access token required")
)

type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	FirstName  string
	MiddleName string
	LastName   string
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (*TokenPair, error)
	Authorize(ctx context.Context, tokenString string) (*token.Claims, error)
	Logout(ctx context.Context, claims *token.Claims) error
	Refresh(ctx context.Context, claims *token.Claims) (string, error)
	CurrentUser(ctx context.Context, username string) (*models.User, error)
}

type authService struct {
	users     repository.UserRepository
	hasher    crypto.PasswordHasher
	issuer    *token.Issuer
	blocklist Blocklist
	logger    *zap.Logger
}

func NewAuthService(users repository.UserRepository, hasher crypto.PasswordHasher, issuer *token.Issuer, blocklist Blocklist, logger *zap.Logger) AuthService {
	return &authService{
		users:     users,
		hasher:    hasher,
		issuer:    issuer,
		blocklist: blocklist,
		logger:    logger,
	}
}

// Register stores a new user. No token is issued; the user logs in separately.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		MiddleName:   in.MiddleName,
		LastName:     in.LastName,
		PasswordHash: passwordHash,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			s.logger.Info("Registration rejected, identity taken", zap.String("username", in.Username))
			return nil, ErrDuplicateIdentity
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered successfully.", zap.String("username", user.Username), zap.Int64("id", user.ID))
	return user, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Info("Login failed, unknown user", zap.String("username", username))
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("Failed to get user by username", zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Info("Login failed, wrong password", zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	access, _, err := s.issuer.IssueAccess(user.Username)
	if err != nil {
		s.logger.Error("Failed to generate access token", zap.Error(err))
		return nil, err
	}
	refresh, _, err := s.issuer.IssueRefresh(user.Username)
	if err != nil {
		s.logger.Error("Failed to generate refresh token", zap.Error(err))
		return nil, err
	}

	s.logger.Info("User logged in successfully.", zap.String("username", user.Username))
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// Authorize validates a bearer token: signature and shape, then expiry, then
// the blocklist.
func (s *authService) Authorize(ctx context.Context, tokenString string) (*token.Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims, err := s.issuer.Parse(tokenString)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return nil, ErrExpiredToken
		}
		s.logger.Debug("Invalid JWT token", zap.Error(err))
		return nil, ErrInvalidToken
	}

	revoked, err := s.blocklist.Contains(ctx, claims.JTI())
	if err != nil {
		s.logger.Error("Failed to check token blocklist", zap.String("jti", claims.JTI()), zap.Error(err))
		return nil, err
	}
	if revoked {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// Logout revokes the presented token, access or refresh alike.
func (s *authService) Logout(ctx context.Context, claims *token.Claims) error {
	if err := s.blocklist.Record(ctx, claims); err != nil {
		s.logger.Error("Failed to revoke token", zap.String("jti", claims.JTI()), zap.Error(err))
		return err
	}

	s.logger.Info("User logged out successfully.", zap.String("username", claims.Username()), zap.String("type", string(claims.Type)))
	return nil
}

// Refresh mints a new access token from a refresh token. The refresh token
// stays valid until it expires or is logged out.
func (s *authService) Refresh(ctx context.Context, claims *token.Claims) (string, error) {
	if claims.Type != token.Refresh {
		return "", ErrRefreshTokenRequired
	}

	access, _, err := s.issuer.IssueAccess(claims.Username())
	if err != nil {
		s.logger.Error("Failed to generate access token", zap.Error(err))
		return "", err
	}

	s.logger.Debug("Access token refreshed.", zap.String("username", claims.Username()))
	return access, nil
}

func (s *authService) CurrentUser(ctx context.Context, username string) (*models.User, error) {
	return s.users.GetUserByUsername(ctx, username)
}
