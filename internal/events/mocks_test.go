package events

import (
	"context"

	"github.com/stretchr/testify/mock"

	"account-service/internal/model"
)

type mockStorageEventRepository struct {
	mock.Mock
}

func (m *mockStorageEventRepository) Save(ctx context.Context, event *model.StorageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
