package repository

import (
	"context"
	"database/sql"

	"lark/internal/errors"
	"lark/internal/models"
)

func (r *Repositories) CreateTier(ctx context.Context, tier *models.TicketTier) error {
	query := `
		INSERT INTO tiers (id, name, unit_price, service_fee, total_quantity, available_quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		tier.ID,
		tier.Name,
		tier.UnitPrice,
		tier.ServiceFee,
		tier.TotalQuantity,
		tier.AvailableQuantity,
	).Scan(&tier.CreatedAt, &tier.UpdatedAt)
}

func (r *Repositories) GetTier(ctx context.Context, id string) (*models.TicketTier, error) {
	tier := &models.TicketTier{}
	query := `
		SELECT id, name, unit_price, service_fee, total_quantity, available_quantity,
		       created_at, updated_at
		FROM tiers
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tier.ID,
		&tier.Name,
		&tier.UnitPrice,
		&tier.ServiceFee,
		&tier.TotalQuantity,
		&tier.AvailableQuantity,
		&tier.CreatedAt,
		&tier.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return tier, err
}

func (r *Repositories) ListTiers(ctx context.Context) ([]models.TicketTier, error) {
	var tiers []models.TicketTier
	query := `
		SELECT id, name, unit_price, service_fee, total_quantity, available_quantity,
		       created_at, updated_at
		FROM tiers
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var tier models.TicketTier
		err := rows.Scan(
			&tier.ID,
			&tier.Name,
			&tier.UnitPrice,
			&tier.ServiceFee,
			&tier.TotalQuantity,
			&tier.AvailableQuantity,
			&tier.CreatedAt,
			&tier.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}

	return tiers, rows.Err()
}

// ReserveInventory compare-and-decrements availability in a single UPDATE;
// the WHERE clause makes over-selling impossible under concurrency.
func (r *Repositories) ReserveInventory(ctx context.Context, tierID string, qty int) error {
	query := `
		UPDATE tiers
		SET available_quantity = available_quantity - $1, updated_at = NOW()
		WHERE id = $2 AND available_quantity >= $1`

	result, err := r.db.ExecContext(ctx, query, qty, tierID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New(errors.KindSoldOut, "not enough tickets remaining in this tier")
	}
	return nil
}

func (r *Repositories) ReleaseInventory(ctx context.Context, tierID string, qty int) error {
	query := `
		UPDATE tiers
		SET available_quantity = LEAST(available_quantity + $1, total_quantity), updated_at = NOW()
		WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, qty, tierID)
	return err
}
