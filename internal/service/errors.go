package service

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrTokenInvalid        = errors.New("token is invalid or expired")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already exists")
	ErrWeakPassword        = errors.New("password must be at least 8 characters and contain an uppercase letter, a lowercase letter and a number")
	ErrPasswordMismatch    = errors.New("password confirmation does not match")
	ErrNoCredentialAccount = errors.New("account has no password set")
	ErrPasswordAlreadySet  = errors.New("account already has a password")
	ErrForbidden           = errors.New("insufficient role")
	ErrUnverifiedLink      = errors.New("an account with this email already exists; sign in with it to link the provider")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
