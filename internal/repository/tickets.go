package repository

import (
	"context"
	"database/sql"

	"lark/internal/models"
)

const ticketColumns = `id, order_id, tier_id, owner_contact, face_value, status, epoch, created_at, updated_at`

func (r *Repositories) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return scanTicket(r.db.QueryRowContext(ctx, query, id))
}

// getTicketForUpdate locks the ticket row for the rest of the transaction.
// All mobility state transitions go through this lock.
func getTicketForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 FOR UPDATE`
	return scanTicket(tx.QueryRowContext(ctx, query, id))
}

func scanTicket(row *sql.Row) (*models.Ticket, error) {
	ticket := &models.Ticket{}
	err := row.Scan(
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

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func updateTicketOwnership(ctx context.Context, tx *sql.Tx, ticket *models.Ticket) error {
	query := `
		UPDATE tickets
		SET owner_contact = $1, status = $2, epoch = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at`

	return tx.QueryRowContext(ctx, query,
		ticket.OwnerContact,
		ticket.Status,
		ticket.Epoch,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}
