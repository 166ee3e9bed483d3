package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"lark/internal/errors"
	"lark/internal/models"
)

const transferColumns = `id, ticket_id, from_owner, method, to_contact, link_token, status, accepted_by, created_at, expires_at, updated_at`

func (r *Repositories) CreateTransfer(ctx context.Context, transfer *models.TransferRequest) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		ticket, err := getTicketForUpdate(ctx, tx, transfer.TicketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return errors.New(errors.KindNotFound, "ticket not found")
		}
		if err := ticket.CheckTransferable(); err != nil {
			return err
		}

		var pending bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM transfers WHERE ticket_id = $1 AND status = 'PENDING')`,
			transfer.TicketID,
		).Scan(&pending)
		if err != nil {
			return err
		}
		if pending {
			return errors.New(errors.KindNotTransferable, "this ticket already has a pending transfer")
		}

		transfer.FromOwner = ticket.OwnerContact

		query := `
			INSERT INTO transfers (id, ticket_id, from_owner, method, to_contact,
			                       link_token, status, created_at, expires_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

		_, err = tx.ExecContext(ctx, query,
			transfer.ID,
			transfer.TicketID,
			transfer.FromOwner,
			transfer.Method,
			transfer.ToContact,
			transfer.LinkToken,
			transfer.Status,
			transfer.CreatedAt,
			transfer.ExpiresAt,
			transfer.UpdatedAt,
		)
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return errors.New(errors.KindConcurrentModification, "a transfer for this ticket was just created")
		}
		return err
	})
}

func (r *Repositories) GetTransfer(ctx context.Context, id string) (*models.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	return scanTransfer(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repositories) AcceptTransfer(ctx context.Context, id, acceptingContact string, now time.Time) (*models.TransferRequest, *models.Ticket, error) {
	var (
		transfer   *models.TransferRequest
		ticket     *models.Ticket
		expiredErr error
	)

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		transfer, err = getTransferForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if transfer == nil {
			return errors.New(errors.KindNotFound, "transfer not found")
		}

		// A pending request past its window is marked expired even though
		// the claim fails; the sweep job is not the only path to EXPIRED.
		if transfer.Expired(now) {
			if err := setTransferStatus(ctx, tx, transfer, models.TransferStatusExpired, nil); err != nil {
				return err
			}
			expiredErr = errors.New(errors.KindTransferExpired, "this transfer has expired")
			return nil
		}
		if err := transfer.CheckAcceptable(now); err != nil {
			return err
		}

		ticket, err = getTicketForUpdate(ctx, tx, transfer.TicketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return errors.New(errors.KindNotFound, "ticket not found")
		}

		if err := setTransferStatus(ctx, tx, transfer, models.TransferStatusAccepted, &acceptingContact); err != nil {
			return err
		}

		ticket.OwnerContact = acceptingContact
		ticket.Status = models.TicketStatusTransferred
		return updateTicketOwnership(ctx, tx, ticket)
	})
	if err != nil {
		return nil, nil, err
	}
	if expiredErr != nil {
		return nil, nil, expiredErr
	}

	return transfer, ticket, nil
}

func (r *Repositories) CancelTransfer(ctx context.Context, id, requester string) (*models.TransferRequest, error) {
	var transfer *models.TransferRequest

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		transfer, err = getTransferForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if transfer == nil {
			return errors.New(errors.KindNotFound, "transfer not found")
		}
		if transfer.FromOwner != requester {
			return errors.New(errors.KindValidation, "only the sender can cancel a transfer")
		}
		if err := transfer.CheckAcceptable(time.Now()); err != nil {
			return err
		}

		return setTransferStatus(ctx, tx, transfer, models.TransferStatusCancelled, nil)
	})
	if err != nil {
		return nil, err
	}

	return transfer, nil
}

func (r *Repositories) ExpireTransfers(ctx context.Context, now time.Time) ([]models.TransferRequest, error) {
	var expired []models.TransferRequest
	query := `
		UPDATE transfers
		SET status = 'EXPIRED', updated_at = NOW()
		WHERE status = 'PENDING' AND expires_at <= $1
		RETURNING ` + transferColumns

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var transfer models.TransferRequest
		if err := scanTransferRow(rows, &transfer); err != nil {
			return nil, err
		}
		expired = append(expired, transfer)
	}

	return expired, rows.Err()
}

func getTransferForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1 FOR UPDATE`
	return scanTransfer(tx.QueryRowContext(ctx, query, id))
}

func setTransferStatus(ctx context.Context, tx *sql.Tx, transfer *models.TransferRequest, status string, acceptedBy *string) error {
	query := `
		UPDATE transfers
		SET status = $1, accepted_by = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at`

	err := tx.QueryRowContext(ctx, query, status, acceptedBy, transfer.ID).Scan(&transfer.UpdatedAt)
	if err != nil {
		return err
	}
	transfer.Status = status
	transfer.AcceptedBy = acceptedBy
	return nil
}

func scanTransfer(row *sql.Row) (*models.TransferRequest, error) {
	transfer := &models.TransferRequest{}
	err := row.Scan(
		&transfer.ID,
		&transfer.TicketID,
		&transfer.FromOwner,
		&transfer.Method,
		&transfer.ToContact,
		&transfer.LinkToken,
		&transfer.Status,
		&transfer.AcceptedBy,
		&transfer.CreatedAt,
		&transfer.ExpiresAt,
		&transfer.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

func scanTransferRow(rows *sql.Rows, transfer *models.TransferRequest) error {
	return rows.Scan(
		&transfer.ID,
		&transfer.TicketID,
		&transfer.FromOwner,
		&transfer.Method,
		&transfer.ToContact,
		&transfer.LinkToken,
		&transfer.Status,
		&transfer.AcceptedBy,
		&transfer.CreatedAt,
		&transfer.ExpiresAt,
		&transfer.UpdatedAt,
	)
}
