package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type customerRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCustomerRepository creates a new PostgreSQL-backed customer repository.
func NewCustomerRepository(pool *pgxpool.Pool, logger zerolog.Logger) CustomerRepository {
	return &customerRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "customer").Logger(),
	}
}

// GetCustomer retrieves a customer by user ID.
func (r *customerRepository) GetCustomer(ctx context.Context, userID int64) (*model.Customer, error) {
	query := `SELECT id, first_name, last_name, email, phone, role FROM users WHERE id = $1`

	var c model.Customer
	err := r.pool.QueryRow(ctx, query, userID).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Int64("user_id", userID).Msg("customer not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to query customer")
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}

	return &c, nil
}

// GetAddress retrieves an address owned by the user.
func (r *customerRepository) GetAddress(ctx context.Context, userID, addressID int64) (*model.Address, error) {
	query := `
		SELECT id, user_id, street, city, province, reference_notes
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`

	var a model.Address
	err := r.pool.QueryRow(ctx, query, addressID, userID).Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.Province, &a.References)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Int64("address_id", addressID).Msg("address not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("address_id", addressID).Msg("failed to query address")
		return nil, fmt.Errorf("failed to query address: %w", err)
	}

	return &a, nil
}
