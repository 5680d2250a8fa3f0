package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	apperrors "timelogger/backend/internal/errors"
	"timelogger/backend/internal/identity"
	"timelogger/backend/internal/model"
	"timelogger/backend/internal/repository"
)

// IdentityVerifier resolves a third-party ID token to an identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (identity.Identity, error)
}

// AuthService turns a sign-in from any provider into a session token and
// runs the profile bootstrap for it.
type AuthService struct {
	userRepo  *repository.UserRepository
	users     *UserService
	verifier  IdentityVerifier
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    zerolog.Logger
}

func NewAuthService(
	userRepo *repository.UserRepository,
	users *UserService,
	verifier IdentityVerifier,
	jwtSecret string,
	tokenTTL time.Duration,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		users:     users,
		verifier:  verifier,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

type AuthResult struct {
	Token           string            `json:"token"`
	User            *model.User       `json:"user,omitempty"`
	Identity        identity.Identity `json:"identity"`
	Profile         model.UserDetail  `json:"profile"`
	LandingLoggerID string            `json:"landingLoggerId"`
}

// Session is what a valid session token says about its bearer.
type Session struct {
	UserID      string
	DisplayName string
}

type sessionClaims struct {
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, *apperrors.APIError) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	if normalizedEmail == "" {
		return nil, apperrors.BadRequest("invalid_email", "email is required")
	}
	if len(password) < 6 {
		return nil, apperrors.BadRequest("invalid_password", "password must be at least 6 characters")
	}

	_, err := s.userRepo.GetByEmail(ctx, normalizedEmail)
	if err == nil {
		return nil, apperrors.Conflict("email_exists", "email already registered", nil)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal("failed to query user")
	}

	passwordHashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("failed to secure password")
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        normalizedEmail,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(passwordHashBytes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperrors.Conflict("email_exists", "email already registered", nil)
		}
		return nil, apperrors.Internal("failed to create user")
	}

	result, apiErr := s.signIn(ctx, identity.Identity{
		UID:         user.ID,
		DisplayName: user.Name,
		Provider:    identity.ProviderPassword,
	})
	if apiErr != nil {
		return nil, apiErr
	}
	result.User = &user
	return result, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, *apperrors.APIError) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	if normalizedEmail == "" || password == "" {
		return nil, apperrors.BadRequest("invalid_credentials", "email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizedEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to query user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	result, apiErr := s.signIn(ctx, identity.Identity{
		UID:         user.ID,
		DisplayName: user.Name,
		Provider:    identity.ProviderPassword,
	})
	if apiErr != nil {
		return nil, apiErr
	}
	result.User = user
	return result, nil
}

// Account returns the local account behind a session, or nil for users who
// signed in anonymously or through Firebase.
func (s *AuthService) Account(ctx context.Context, userID string) (*model.User, *apperrors.APIError) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to query user")
	}
	return user, nil
}

func (s *AuthService) Anonymous(ctx context.Context) (*AuthResult, *apperrors.APIError) {
	return s.signIn(ctx, identity.Anonymous())
}

func (s *AuthService) Firebase(ctx context.Context, idToken string) (*AuthResult, *apperrors.APIError) {
	if s.verifier == nil {
		return nil, apperrors.NotImplemented("provider_disabled", "firebase sign-in is not configured")
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, apperrors.BadRequest("invalid_id_token", "idToken is required")
	}

	who, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Rejected firebase ID token")
		return nil, apperrors.Unauthorized("invalid id token")
	}
	return s.signIn(ctx, who)
}

// signIn runs the profile bootstrap and issues a token. Bootstrap write
// failures are already logged by the user service and do not block sign-in.
func (s *AuthService) signIn(ctx context.Context, who identity.Identity) (*AuthResult, *apperrors.APIError) {
	signIn, err := s.users.SignedIn(ctx, who)
	if signIn == nil {
		s.logger.Error().Err(err).Str("user_id", who.UID).Msg("Profile bootstrap failed")
		return nil, apperrors.Internal("failed to load profile")
	}

	token, apiErr := s.issueToken(who)
	if apiErr != nil {
		return nil, apiErr
	}

	return &AuthResult{
		Token:           token,
		Identity:        who,
		Profile:         signIn.Profile,
		LandingLoggerID: signIn.LandingLoggerID,
	}, nil
}

func (s *AuthService) ParseToken(tokenString string) (*Session, *apperrors.APIError) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok {
		return nil, apperrors.Unauthorized("invalid token")
	}

	if claims.Subject == "" {
		return nil, apperrors.Unauthorized("invalid token subject")
	}

	return &Session{UserID: claims.Subject, DisplayName: claims.Name}, nil
}

func (s *AuthService) issueToken(who identity.Identity) (string, *apperrors.APIError) {
	now := time.Now().UTC()
	claims := sessionClaims{
		Name:     who.DisplayName,
		Provider: who.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.UID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperrors.Internal("failed to sign token")
	}
	return signed, nil
}
