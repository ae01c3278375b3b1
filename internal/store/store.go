package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rifa-service/internal/models"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate applies pending schema migrations.
func Migrate(migrationsPath, databaseURL string) error {
	m, err := migrate.New(migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetCampaign retrieves a campaign by ID
func (s *Store) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	var c models.Campaign
	err := s.db.GetContext(ctx, &c, "SELECT * FROM campaigns WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetActiveCampaign retrieves the most recently created active campaign,
// used when callers omit a campaign id.
func (s *Store) GetActiveCampaign(ctx context.Context) (*models.Campaign, error) {
	var c models.Campaign
	err := s.db.GetContext(ctx, &c,
		"SELECT * FROM campaigns WHERE status = $1 ORDER BY created_at DESC LIMIT 1",
		models.CampaignStatusActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCampaign creates or updates a campaign and returns the stored row.
func (s *Store) UpsertCampaign(ctx context.Context, c *models.Campaign) (*models.Campaign, error) {
	coupons, err := json.Marshal(c.Coupons)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal coupons: %w", err)
	}
	if c.Coupons == nil {
		coupons = []byte("[]")
	}

	query := `
		INSERT INTO campaigns (
			id, title, description, status, number_start, number_end, total_numbers,
			price_per_cota_cents, min_purchase_quantity, max_purchase_quantity,
			starts_at, ends_at, coupons
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			number_start = EXCLUDED.number_start,
			number_end = EXCLUDED.number_end,
			total_numbers = EXCLUDED.total_numbers,
			price_per_cota_cents = EXCLUDED.price_per_cota_cents,
			min_purchase_quantity = EXCLUDED.min_purchase_quantity,
			max_purchase_quantity = EXCLUDED.max_purchase_quantity,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			coupons = EXCLUDED.coupons,
			updated_at = NOW()
		RETURNING *`

	var stored models.Campaign
	err = s.db.GetContext(ctx, &stored, query,
		c.ID, c.Title, c.Description, c.Status, c.NumberStart, c.NumberEnd, c.TotalNumbers,
		c.PricePerCotaCents, c.MinPurchaseQuantity, c.MaxPurchaseQuantity,
		c.StartsAt, c.EndsAt, coupons)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// IsEventProcessed checks if a consumer event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks a consumer event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

// AppendAuditLog writes an audit row; (event, external_id) pairs are
// create-once so retried writers cannot duplicate them.
func (s *Store) AppendAuditLog(ctx context.Context, event, externalID, userID string, detail interface{}) error {
	var payload []byte
	if detail != nil {
		b, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("failed to marshal audit detail: %w", err)
		}
		payload = b
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (event, external_id, user_id, detail)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event, external_id) DO NOTHING`,
		event, externalID, userID, payload)
	return err
}
