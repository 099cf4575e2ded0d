package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"account-service/internal/model"
)

type StorageEventRepository interface {
	Save(ctx context.Context, event *model.StorageEvent) error
}

type postgresStorageEventRepository struct {
	db *sqlx.DB
}

func NewPostgresStorageEventRepository(db *sqlx.DB) StorageEventRepository {
	return &postgresStorageEventRepository{db: db}
}

func (r *postgresStorageEventRepository) Save(ctx context.Context, event *model.StorageEvent) error {
	query := `
		INSERT INTO storage_events (operation, path, file_name, user_id, success, error_code, occurred_at)
		VALUES (:operation, :path, :file_name, :user_id, :success, :error_code, :occurred_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, event)
	return err
}
