package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

// CustomerStore answers the two questions checkout and notifications ask
// about customers: does this address belong to this user, and where does
// their mail go. Account management itself lives elsewhere.
type CustomerStore struct {
	pool *pgxpool.Pool
}

func NewCustomerStore(pool *pgxpool.Pool) *CustomerStore {
	return &CustomerStore{pool: pool}
}

func (s *CustomerStore) AddressBelongsToUser(ctx context.Context, addressID, userID uuid.UUID) (bool, error) {
	var owner uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT user_id FROM addresses WHERE id = $1`, addressID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query address: %w", err)
	}
	return owner == userID, nil
}

func (s *CustomerStore) EmailForUser(ctx context.Context, userID uuid.UUID) (string, error) {
	var email string
	err := s.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query user email: %w", err)
	}
	return email, nil
}
