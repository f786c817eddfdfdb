package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/acme/storefront/internal/domain"
)

const uniqueViolation = "23505"

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         domain.Role
}

// Create inserts the user and its empty profile in one transaction, so no
// user ever exists without a profile row.
func (r *UserRepository) Create(ctx context.Context, nu NewUser) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	user := &domain.User{
		ID:         uuid.New().String(),
		Email:      nu.Email,
		FirstName:  nu.FirstName,
		LastName:   nu.LastName,
		IsSeller:   nu.Role == domain.RoleSeller,
		IsCustomer: nu.Role == domain.RoleCustomer,
		CreatedAt:  time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, nu.PasswordHash, user.FirstName, user.LastName, nu.Role, user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, address, phone_number)
		VALUES ($1, '', '')
	`, user.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return user, nil
}

// GetCredentials returns the principal and stored password hash for email.
func (r *UserRepository) GetCredentials(ctx context.Context, email string) (domain.Principal, string, error) {
	var p domain.Principal
	var hash string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, role, password_hash
		FROM users
		WHERE email = $1
	`, email).Scan(&p.ID, &p.Email, &p.Role, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Principal{}, "", domain.ErrInvalidCredentials
		}
		return domain.Principal{}, "", err
	}

	return p, hash, nil
}

func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *UserRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	profile := &domain.Profile{}

	err := r.db.QueryRowContext(ctx, `
		SELECT address, phone_number
		FROM profiles
		WHERE user_id = $1
	`, userID).Scan(&profile.Address, &profile.PhoneNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return profile, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, profile domain.Profile) (*domain.Profile, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE profiles SET address = $1, phone_number = $2
		WHERE user_id = $3
	`, profile.Address, profile.PhoneNumber, userID)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, domain.ErrNotFound
	}

	return &profile, nil
}
