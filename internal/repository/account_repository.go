package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"account-service/internal/model"
)

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	FindByProvider(ctx context.Context, providerID, accountID string) (*model.Account, error)
	FindByUserAndProvider(ctx context.Context, userID uuid.UUID, providerID string) (*model.Account, error)
	ListProviders(ctx context.Context, userID uuid.UUID) ([]string, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

type postgresAccountRepository struct {
	db *sqlx.DB
}

func NewPostgresAccountRepository(db *sqlx.DB) AccountRepository {
	return &postgresAccountRepository{db: db}
}

const accountColumns = `id, user_id, provider_id, account_id, password_hash, created_at, updated_at`

func (r *postgresAccountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `INSERT INTO accounts (user_id, provider_id, account_id, password_hash) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, account.UserID, account.ProviderID, account.AccountID, account.PasswordHash)
	return err
}

func (r *postgresAccountRepository) FindByProvider(ctx context.Context, providerID, accountID string) (*model.Account, error) {
	var account model.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE provider_id = $1 AND account_id = $2`
	if err := r.db.GetContext(ctx, &account, query, providerID, accountID); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *postgresAccountRepository) FindByUserAndProvider(ctx context.Context, userID uuid.UUID, providerID string) (*model.Account, error) {
	var account model.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND provider_id = $2`
	if err := r.db.GetContext(ctx, &account, query, userID, providerID); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *postgresAccountRepository) ListProviders(ctx context.Context, userID uuid.UUID) ([]string, error) {
	providers := []string{}
	query := `SELECT provider_id FROM accounts WHERE user_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &providers, query, userID); err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *postgresAccountRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	query := `UPDATE accounts SET password_hash = $1, updated_at = now() WHERE user_id = $2 AND provider_id = $3`
	res, err := r.db.ExecContext(ctx, query, passwordHash, userID, model.ProviderCredential)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
