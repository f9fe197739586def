package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/model"
	"trackx/backend/internal/repository"
	"trackx/backend/internal/session"
)

type AuthService struct {
	userRepo  *repository.UserRepository
	sessions  *session.Hub
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *log.Logger
}

func NewAuthService(
	userRepo *repository.UserRepository,
	sessions *session.Hub,
	jwtSecret string,
	tokenTTL time.Duration,
	logger *log.Logger,
) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		sessions:  sessions,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

type AuthResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Identity is a validated session token.
type Identity struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

func (s *AuthService) SignUp(ctx context.Context, email, password, displayName string) (*AuthResult, *apperrors.APIError) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	if normalizedEmail == "" || !strings.Contains(normalizedEmail, "@") {
		return nil, apperrors.Auth(http.StatusBadRequest, "Please enter a valid email address.")
	}
	if len(password) < 6 {
		return nil, apperrors.Auth(http.StatusBadRequest, "Password should be at least 6 characters.")
	}

	passwordHashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("failed to secure password")
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        normalizedEmail,
		PasswordHash: string(passwordHashBytes),
		DisplayName:  strings.TrimSpace(displayName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Auth(http.StatusConflict, "An account with this email already exists.")
		}
		s.logger.Error("create user", "error", err)
		return nil, apperrors.Internal("failed to create user")
	}

	return s.startSession(user)
}

func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, *apperrors.APIError) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	if normalizedEmail == "" || password == "" {
		return nil, apperrors.Auth(http.StatusBadRequest, "Email and password are required.")
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizedEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Auth(http.StatusUnauthorized, "Invalid email or password.")
	}
	if err != nil {
		s.logger.Error("query user", "error", err)
		return nil, apperrors.Internal("failed to query user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.Auth(http.StatusUnauthorized, "Invalid email or password.")
	}

	return s.startSession(*user)
}

// SignOut revokes the token behind identity and ends its session.
func (s *AuthService) SignOut(ctx context.Context, identity Identity) *apperrors.APIError {
	if err := s.userRepo.RevokeToken(ctx, identity.TokenID, identity.UserID, identity.ExpiresAt); err != nil {
		s.logger.Error("revoke token", "uid", identity.UserID, "error", err)
		return apperrors.Internal("failed to sign out")
	}
	s.sessions.SignOut(identity.TokenID)

	if purged, err := s.userRepo.PurgeExpiredTokens(ctx, time.Now().UTC()); err != nil {
		s.logger.Warn("purge revoked tokens", "error", err)
	} else if purged > 0 {
		s.logger.Debug("purged revoked tokens", "count", purged)
	}
	return nil
}

// Authenticate validates a bearer token and rejects signed-out ones.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*Identity, *apperrors.APIError) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, apperrors.Unauthorized("invalid token")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, apperrors.Unauthorized("invalid token subject")
	}

	revoked, err := s.userRepo.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("check revoked token", "error", err)
		return nil, apperrors.Internal("failed to verify token")
	}
	if revoked {
		return nil, apperrors.Unauthorized("session has ended")
	}

	identity := &Identity{UserID: claims.Subject, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, *apperrors.APIError) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user_not_found", "user not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to query user")
	}
	user.PasswordHash = ""
	return user, nil
}

// ObserveCurrentUser streams the account behind identity until sign-out or
// until ctx ends. A nil value means signed out.
func (s *AuthService) ObserveCurrentUser(ctx context.Context, identity Identity) (<-chan *model.CurrentUser, *apperrors.APIError) {
	user, apiErr := s.Me(ctx, identity.UserID)
	if apiErr != nil {
		return nil, apiErr
	}
	s.sessions.Attach(identity.TokenID, user.Current(), identity.ExpiresAt)
	return s.sessions.Observe(ctx, identity.TokenID), nil
}

func (s *AuthService) startSession(user model.User) (*AuthResult, *apperrors.APIError) {
	tokenID := uuid.NewString()
	token, expiresAt, apiErr := s.issueToken(user, tokenID)
	if apiErr != nil {
		return nil, apiErr
	}
	s.sessions.Attach(tokenID, user.Current(), expiresAt)

	user.PasswordHash = ""
	return &AuthResult{
		Token: token,
		User:  user,
	}, nil
}

func (s *AuthService) issueToken(user model.User, tokenID string) (string, time.Time, *apperrors.APIError) {
	now := time.Now().UTC()
	expiresAt := jwt.NewNumericDate(now.Add(s.tokenTTL))
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: expiresAt,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, apperrors.Internal("failed to sign token")
	}
	return signed, expiresAt.Time, nil
}
