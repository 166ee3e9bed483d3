package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"lark/internal/errors"
	"lark/internal/models"
)

// CreatePurchase inserts a confirmed order and its tickets in one
// transaction. A duplicate idempotency key surfaces as
// CONCURRENT_MODIFICATION; the checkout engine resolves it by returning the
// originally confirmed order.
func (r *Repositories) CreatePurchase(ctx context.Context, order *models.Order, tickets []models.Ticket) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		orderQuery := `
			INSERT INTO orders (id, tier_id, buyer_name, buyer_email, quantity,
			                    unit_price, service_fee, total_paid, payment_ref,
			                    idempotency_key, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at`

		err := tx.QueryRowContext(ctx, orderQuery,
			order.ID,
			order.TierID,
			order.BuyerName,
			order.BuyerEmail,
			order.Quantity,
			order.UnitPrice,
			order.ServiceFee,
			order.TotalPaid,
			order.PaymentRef,
			order.IdempotencyKey,
			order.Status,
		).Scan(&order.CreatedAt)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
				return errors.New(errors.KindConcurrentModification, "an order with this idempotency key already exists")
			}
			return err
		}

		ticketQuery := `
			INSERT INTO tickets (id, order_id, tier_id, owner_contact, face_value, status, epoch)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at`

		for i := range tickets {
			t := &tickets[i]
			err := tx.QueryRowContext(ctx, ticketQuery,
				t.ID,
				t.OrderID,
				t.TierID,
				t.OwnerContact,
				t.FaceValue,
				t.Status,
				t.Epoch,
			).Scan(&t.CreatedAt, &t.UpdatedAt)
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *Repositories) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return r.getOrderWhere(ctx, "id = $1", id)
}

func (r *Repositories) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	return r.getOrderWhere(ctx, "idempotency_key = $1", key)
}

func (r *Repositories) getOrderWhere(ctx context.Context, where string, arg interface{}) (*models.Order, error) {
	order := &models.Order{}
	query := `
		SELECT id, tier_id, buyer_name, buyer_email, quantity, unit_price,
		       service_fee, total_paid, payment_ref, idempotency_key, status, created_at
		FROM orders
		WHERE ` + where

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&order.ID,
		&order.TierID,
		&order.BuyerName,
		&order.BuyerEmail,
		&order.Quantity,
		&order.UnitPrice,
		&order.ServiceFee,
		&order.TotalPaid,
		&order.PaymentRef,
		&order.IdempotencyKey,
		&order.Status,
		&order.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return order, err
}

func (r *Repositories) GetOrderTickets(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	query := `
		SELECT id, order_id, tier_id, owner_contact, face_value, status, epoch,
		       created_at, updated_at
		FROM tickets
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ticket models.Ticket
		err := rows.Scan(
			&ticket.ID,
			&ticket.OrderID,
			&ticket.TierID,
			&ticket.OwnerContact,
			&ticket.FaceValue,
			&ticket.Status,
			&ticket.Epoch,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}

	return tickets, rows.Err()
}
