package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sidang-api/internal/models"
)

// CalendarTokenRepository stores per-user external-calendar OAuth tokens.
type CalendarTokenRepository struct {
	db *sqlx.DB
}

// NewCalendarTokenRepository creates a new calendar token repository.
func NewCalendarTokenRepository(db *sqlx.DB) *CalendarTokenRepository {
	return &CalendarTokenRepository{db: db}
}

// GetByUser loads the token row for a user. Returns sql.ErrNoRows when the
// user has not linked a calendar account.
func (r *CalendarTokenRepository) GetByUser(ctx context.Context, userID string) (*models.CalendarToken, error) {
	const query = `SELECT id, user_id, access_token, refresh_token, expiry, created_at, updated_at FROM calendar_tokens WHERE user_id = $1`
	var token models.CalendarToken
	if err := r.db.GetContext(ctx, &token, query, userID); err != nil {
		return nil, err
	}
	return &token, nil
}

// Upsert stores a user's linked account, replacing any previous link.
func (r *CalendarTokenRepository) Upsert(ctx context.Context, token *models.CalendarToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	token.UpdatedAt = now

	const query = `INSERT INTO calendar_tokens (id, user_id, access_token, refresh_token, expiry, created_at, updated_at) VALUES (:id, :user_id, :access_token, :refresh_token, :expiry, :created_at, :updated_at) ON CONFLICT (user_id) DO UPDATE SET access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token, expiry = EXCLUDED.expiry, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("upsert calendar token: %w", err)
	}
	return nil
}

// UpdateTokens persists a refreshed access token (and rotated refresh token,
// when the provider issued one).
func (r *CalendarTokenRepository) UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error {
	const query = `UPDATE calendar_tokens SET access_token = $2, refresh_token = $3, expiry = $4, updated_at = $5 WHERE user_id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID, accessToken, refreshToken, expiry, time.Now().UTC()); err != nil {
		return fmt.Errorf("update calendar tokens: %w", err)
	}
	return nil
}

// Delete unlinks a user's calendar account.
func (r *CalendarTokenRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM calendar_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete calendar token: %w", err)
	}
	return nil
}
