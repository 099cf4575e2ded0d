package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"account-service/internal/model"
)

type UserUpdate struct {
	Name          *string
	Email         *string
	EmailVerified *bool
	Image         *string
}

type UserRepository interface {
	CreateWithAccount(ctx context.Context, user *model.User, account *model.Account) (uuid.UUID, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindRole(ctx context.Context, id uuid.UUID) (string, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, id uuid.UUID, update UserUpdate) error
}

type postgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `id, name, email, email_verified, role, image, created_at, updated_at`

// CreateWithAccount inserts the user and its first account in one
// transaction.
func (r *postgresUserRepository) CreateWithAccount(ctx context.Context, user *model.User, account *model.Account) (uuid.UUID, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	var newID uuid.UUID
	query := `INSERT INTO users (name, email, email_verified, role, image) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err = tx.QueryRowxContext(ctx, query, user.Name, user.Email, user.EmailVerified, user.Role, user.Image).Scan(&newID)
	if err != nil {
		return uuid.Nil, err
	}

	accountID := account.AccountID
	if account.ProviderID == model.ProviderCredential {
		accountID = newID.String()
	}

	query = `INSERT INTO accounts (user_id, provider_id, account_id, password_hash) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, newID, account.ProviderID, accountID, account.PasswordHash); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}

	return newID, nil
}

func (r *postgresUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *postgresUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *postgresUserRepository) FindRole(ctx context.Context, id uuid.UUID) (string, error) {
	var role string
	err := r.db.GetContext(ctx, &role, `SELECT role FROM users WHERE id = $1`, id)
	return role, err
}

func (r *postgresUserRepository) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *postgresUserRepository) Update(ctx context.Context, id uuid.UUID, update UserUpdate) error {
	var setClauses []string
	var args []interface{}
	argID := 1

	if update.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argID))
		args = append(args, *update.Name)
		argID++
	}
	if update.Email != nil {
		setClauses = append(setClauses, fmt.Sprintf("email = $%d", argID))
		args = append(args, *update.Email)
		argID++
	}
	if update.EmailVerified != nil {
		setClauses = append(setClauses, fmt.Sprintf("email_verified = $%d", argID))
		args = append(args, *update.EmailVerified)
		argID++
	}
	if update.Image != nil {
		setClauses = append(setClauses, fmt.Sprintf("image = $%d", argID))
		args = append(args, *update.Image)
		argID++
	}

	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, "updated_at = now()")
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argID)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, query, args...)
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
