package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"account-service/internal/jwt"
	"account-service/internal/model"
	"account-service/internal/oauth"
	"account-service/internal/repository"
)

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthService interface {
	RegisterUser(ctx context.Context, email, password, name string) (*model.User, error)
	LoginUser(ctx context.Context, email, password string) (*Tokens, error)
	LoginWithOAuth(ctx context.Context, provider string, identity *oauth.Identity) (*Tokens, error)
	RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken string, err error)
	LogoutUser(ctx context.Context, refreshTokenString string) error
}

type authService struct {
	userRepo    repository.UserRepository
	accountRepo repository.AccountRepository
	tokenRepo   repository.TokenRepository
	tokens      *jwt.Manager
}

func NewAuthService(
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	tokenRepo repository.TokenRepository,
	tokens *jwt.Manager,
) AuthService {
	return &authService{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		tokenRepo:   tokenRepo,
		tokens:      tokens,
	}
}

// ValidatePasswordStrength requires at least 8 characters with an uppercase
// letter, a lowercase letter and a digit.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func (s *authService) RegisterUser(ctx context.Context, email, password, name string) (*model.User, error) {
	if err := ValidatePasswordStrength(password); err != nil {
		return nil, err
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email: normalizeEmail(email),
		Name:  name,
		Role:  model.RoleUser,
	}
	account := &model.Account{
		ProviderID:   model.ProviderCredential,
		PasswordHash: &hashedPassword,
	}

	newID, err := s.userRepo.CreateWithAccount(ctx, user, account)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	user.ID = newID

	slog.InfoContext(ctx, "User registered", "user_id", newID)
	return user, nil
}

func (s *authService) LoginUser(ctx context.Context, email, password string) (*Tokens, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accountRepo.FindByUserAndProvider(ctx, user.ID, model.ProviderCredential)
	if err != nil || account.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// LoginWithOAuth signs in the owner of a provider identity. An unknown
// identity is linked to the user with the same email only when the provider
// has verified that email; otherwise a new user is created.
func (s *authService) LoginWithOAuth(ctx context.Context, provider string, identity *oauth.Identity) (*Tokens, error) {
	account, err := s.accountRepo.FindByProvider(ctx, provider, identity.Subject)
	switch {
	case err == nil:
		user, err := s.userRepo.FindByID(ctx, account.UserID)
		if err != nil {
			return nil, err
		}
		return s.issueTokens(ctx, user)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	email := normalizeEmail(identity.Email)
	user, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !identity.EmailVerified {
			slog.WarnContext(ctx, "Refused to link OAuth account with unverified email", "user_id", user.ID, "provider", provider)
			return nil, ErrUnverifiedLink
		}
		if err := s.accountRepo.Create(ctx, &model.Account{
			UserID:     user.ID,
			ProviderID: provider,
			AccountID:  identity.Subject,
		}); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Linked OAuth account", "user_id", user.ID, "provider", provider)
		return s.issueTokens(ctx, user)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	user = &model.User{
		Name:          identity.Name,
		Email:         email,
		EmailVerified: identity.EmailVerified,
		Role:          model.RoleUser,
	}
	if identity.Picture != "" {
		user.Image = &identity.Picture
	}

	newID, err := s.userRepo.CreateWithAccount(ctx, user, &model.Account{
		ProviderID: provider,
		AccountID:  identity.Subject,
	})
	if err != nil {
		return nil, err
	}
	user.ID = newID

	slog.InfoContext(ctx, "User registered through OAuth", "user_id", newID, "provider", provider)
	return s.issueTokens(ctx, user)
}

func (s *authService) issueTokens(ctx context.Context, user *model.User) (*Tokens, error) {
	accessToken, refreshToken, err := s.tokens.GenerateTokens(user)
	if err != nil {
		return nil, err
	}

	refreshTokenModel := &model.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: time.Now().Add(s.tokens.RefreshTTL()),
	}
	if err := s.tokenRepo.Create(ctx, refreshTokenModel); err != nil {
		return nil, err
	}

	return &Tokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *authService) RefreshToken(ctx context.Context, refreshTokenString string) (string, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshTokenString)
	if err != nil {
		return "", ErrTokenInvalid
	}

	if _, err := s.tokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenString)); err != nil {
		return "", ErrTokenInvalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", ErrTokenInvalid
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", ErrTokenInvalid
	}

	return s.tokens.GenerateAccessToken(user)
}

func (s *authService) LogoutUser(ctx context.Context, refreshTokenString string) error {
	return s.tokenRepo.Delete(ctx, hashToken(refreshTokenString))
}
