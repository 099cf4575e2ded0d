package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"account-service/internal/model"
	"account-service/internal/oauth"
	objstore "account-service/internal/s3"
	"account-service/internal/service"
	"account-service/internal/storage"
)

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) RegisterUser(ctx context.Context, email, password, name string) (*model.User, error) {
	args := m.Called(ctx, email, password, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockAuthService) LoginUser(ctx context.Context, email, password string) (*service.Tokens, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Tokens), args.Error(1)
}

func (m *mockAuthService) LoginWithOAuth(ctx context.Context, provider string, identity *oauth.Identity) (*service.Tokens, error) {
	args := m.Called(ctx, provider, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Tokens), args.Error(1)
}

func (m *mockAuthService) RefreshToken(ctx context.Context, refreshTokenString string) (string, error) {
	args := m.Called(ctx, refreshTokenString)
	return args.String(0), args.Error(1)
}

func (m *mockAuthService) LogoutUser(ctx context.Context, refreshTokenString string) error {
	return m.Called(ctx, refreshTokenString).Error(0)
}

type mockUserService struct{ mock.Mock }

func (m *mockUserService) user(args mock.Arguments) (*model.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserService) ListUsers(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *mockUserService) GetProfile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return m.user(m.Called(ctx, userID))
}

func (m *mockUserService) UpdateName(ctx context.Context, userID uuid.UUID, name string) (*model.User, error) {
	return m.user(m.Called(ctx, userID, name))
}

func (m *mockUserService) UpdateEmail(ctx context.Context, userID uuid.UUID, email string) (*model.User, error) {
	return m.user(m.Called(ctx, userID, email))
}

func (m *mockUserService) UpdateImage(ctx context.Context, userID uuid.UUID, imageURL string) (*model.User, error) {
	return m.user(m.Called(ctx, userID, imageURL))
}

func (m *mockUserService) UploadAvatar(ctx context.Context, userID uuid.UUID, file service.UploadFile) (*model.User, error) {
	return m.user(m.Called(ctx, userID, file))
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next, confirm string) error {
	return m.Called(ctx, userID, current, next, confirm).Error(0)
}

func (m *mockUserService) SetPassword(ctx context.Context, userID uuid.UUID, next, confirm string) error {
	return m.Called(ctx, userID, next, confirm).Error(0)
}

func (m *mockUserService) Providers(ctx context.Context, userID uuid.UUID) (*service.ProviderInfo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProviderInfo), args.Error(1)
}

type mockStorageService struct{ mock.Mock }

func (m *mockStorageService) result(args mock.Arguments) (*service.UploadResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}

func (m *mockStorageService) Upload(ctx context.Context, category storage.Category, file service.UploadFile) (*service.UploadResult, error) {
	return m.result(m.Called(ctx, category, file))
}

func (m *mockStorageService) Replace(ctx context.Context, category storage.Category, oldKey string, file service.UploadFile) (*service.UploadResult, error) {
	return m.result(m.Called(ctx, category, oldKey, file))
}

func (m *mockStorageService) Get(ctx context.Context, key string) (*objstore.Object, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*objstore.Object), args.Error(1)
}

func (m *mockStorageService) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStorageService) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStorageService) SignedURL(ctx context.Context, key string, expiresIn int) (string, error) {
	args := m.Called(ctx, key, expiresIn)
	return args.String(0), args.Error(1)
}

func (m *mockStorageService) Stats(ctx context.Context) (*service.StorageStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.StorageStats), args.Error(1)
}

func (m *mockStorageService) KeyFromURL(url string) (string, bool) {
	args := m.Called(url)
	return args.String(0), args.Bool(1)
}

// roleTable authorizes from a fixed map of user roles.
type roleTable map[uuid.UUID]string

func (r roleTable) Authorize(_ context.Context, userID uuid.UUID, roles ...string) error {
	role, ok := r[userID]
	if !ok {
		return service.ErrUserNotFound
	}
	for _, allowed := range roles {
		if role == allowed {
			return nil
		}
	}
	return service.ErrForbidden
}
