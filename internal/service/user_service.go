package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"account-service/internal/events"
	"account-service/internal/model"
	"account-service/internal/repository"
	"account-service/internal/storage"
)

type ProviderInfo struct {
	Providers      []string `json:"providers"`
	OAuthProviders []string `json:"oauthProviders"`
	HasCredential  bool     `json:"hasCredential"`
	HasOAuth       bool     `json:"hasOAuth"`
	HasGoogle      bool     `json:"hasGoogle"`
}

type UserService interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*model.User, error)
	UpdateName(ctx context.Context, userID uuid.UUID, name string) (*model.User, error)
	UpdateEmail(ctx context.Context, userID uuid.UUID, email string) (*model.User, error)
	UpdateImage(ctx context.Context, userID uuid.UUID, imageURL string) (*model.User, error)
	UploadAvatar(ctx context.Context, userID uuid.UUID, file UploadFile) (*model.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next, confirm string) error
	SetPassword(ctx context.Context, userID uuid.UUID, next, confirm string) error
	Providers(ctx context.Context, userID uuid.UUID) (*ProviderInfo, error)
}

type userService struct {
	userRepo    repository.UserRepository
	accountRepo repository.AccountRepository
	tokenRepo   repository.TokenRepository
	storage     StorageService
	roles       *RoleResolver
	publisher   events.EventPublisher
}

func NewUserService(
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	tokenRepo repository.TokenRepository,
	storageService StorageService,
	roles *RoleResolver,
	publisher events.EventPublisher,
) UserService {
	return &userService{
		userRepo:    userRepo,
		accountRepo: accountRepo,
		tokenRepo:   tokenRepo,
		storage:     storageService,
		roles:       roles,
		publisher:   publisher,
	}
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.userRepo.List(ctx)
}

func (s *userService) GetProfile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *userService) UpdateName(ctx context.Context, userID uuid.UUID, name string) (*model.User, error) {
	return s.update(ctx, userID, repository.UserUpdate{Name: &name}, "name")
}

// UpdateEmail resets the verified flag since the new address was never
// confirmed.
func (s *userService) UpdateEmail(ctx context.Context, userID uuid.UUID, email string) (*model.User, error) {
	email = normalizeEmail(email)
	verified := false
	return s.update(ctx, userID, repository.UserUpdate{Email: &email, EmailVerified: &verified}, "email")
}

func (s *userService) UpdateImage(ctx context.Context, userID uuid.UUID, imageURL string) (*model.User, error) {
	return s.update(ctx, userID, repository.UserUpdate{Image: &imageURL}, "image")
}

func (s *userService) UploadAvatar(ctx context.Context, userID uuid.UUID, file UploadFile) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var oldKey string
	if user.Image != nil {
		oldKey, _ = s.storage.KeyFromURL(*user.Image)
	}

	res, err := s.storage.Replace(WithUserID(ctx, userID), storage.Avatars, oldKey, file)
	if err != nil {
		return nil, err
	}

	return s.update(ctx, userID, repository.UserUpdate{Image: &res.URL}, "image")
}

func (s *userService) update(ctx context.Context, userID uuid.UUID, update repository.UserUpdate, field string) (*model.User, error) {
	if err := s.userRepo.Update(ctx, userID, update); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.roles.Invalidate(ctx, userID)
	s.publishUpdated(ctx, userID, field)

	return s.GetProfile(ctx, userID)
}

// ChangePassword requires the current password and signs the user out of
// every other session.
func (s *userService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next, confirm string) error {
	if next != confirm {
		return ErrPasswordMismatch
	}
	if err := ValidatePasswordStrength(next); err != nil {
		return err
	}

	account, err := s.accountRepo.FindByUserAndProvider(ctx, userID, model.ProviderCredential)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoCredentialAccount
	}
	if err != nil {
		return err
	}
	if account.PasswordHash == nil {
		return ErrNoCredentialAccount
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*account.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	hashed, err := hashPassword(next)
	if err != nil {
		return err
	}
	if err := s.accountRepo.UpdatePassword(ctx, userID, hashed); err != nil {
		return err
	}

	if err := s.tokenRepo.DeleteByUserID(ctx, userID); err != nil {
		slog.WarnContext(ctx, "Failed to revoke refresh tokens", "user_id", userID, "error", err)
	}

	s.publishUpdated(ctx, userID, "password")
	return nil
}

// SetPassword adds a credential account to a user that only signed in
// through OAuth so far.
func (s *userService) SetPassword(ctx context.Context, userID uuid.UUID, next, confirm string) error {
	if next != confirm {
		return ErrPasswordMismatch
	}
	if err := ValidatePasswordStrength(next); err != nil {
		return err
	}

	_, err := s.accountRepo.FindByUserAndProvider(ctx, userID, model.ProviderCredential)
	if err == nil {
		return ErrPasswordAlreadySet
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	hashed, err := hashPassword(next)
	if err != nil {
		return err
	}

	err = s.accountRepo.Create(ctx, &model.Account{
		UserID:       userID,
		ProviderID:   model.ProviderCredential,
		AccountID:    userID.String(),
		PasswordHash: &hashed,
	})
	if isUniqueViolation(err) {
		return ErrPasswordAlreadySet
	}
	if err != nil {
		return err
	}

	s.publishUpdated(ctx, userID, "password")
	return nil
}

func (s *userService) Providers(ctx context.Context, userID uuid.UUID) (*ProviderInfo, error) {
	providers, err := s.accountRepo.ListProviders(ctx, userID)
	if err != nil {
		return nil, err
	}

	info := &ProviderInfo{Providers: providers, OAuthProviders: []string{}}
	for _, p := range providers {
		if p != model.ProviderCredential {
			info.OAuthProviders = append(info.OAuthProviders, p)
		}
	}
	info.HasCredential = slices.Contains(providers, model.ProviderCredential)
	info.HasOAuth = len(info.OAuthProviders) > 0
	info.HasGoogle = slices.Contains(providers, model.ProviderGoogle)
	return info, nil
}

func (s *userService) publishUpdated(ctx context.Context, userID uuid.UUID, fields ...string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishUserUpdated(userID, fields...); err != nil {
		slog.WarnContext(ctx, "Failed to publish user update", "user_id", userID, "error", err)
	}
}
