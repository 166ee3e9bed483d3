package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"lark/internal/errors"
	"lark/internal/models"
)

const listingColumns = `id, ticket_id, seller_contact, listing_price, buyer_contact, status, created_at, updated_at`

func (r *Repositories) CreateListing(ctx context.Context, listing *models.ResaleListing) (*models.Ticket, error) {
	var ticket *models.Ticket

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		ticket, err = getTicketForUpdate(ctx, tx, listing.TicketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return errors.New(errors.KindNotFound, "ticket not found")
		}
		if err := ticket.CheckListable(); err != nil {
			return err
		}

		var pending bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM transfers WHERE ticket_id = $1 AND status = 'PENDING')`,
			listing.TicketID,
		).Scan(&pending)
		if err != nil {
			return err
		}
		if pending {
			return errors.New(errors.KindNotTransferable, "this ticket has a pending transfer; cancel it before listing")
		}

		// The cap is checked against the face value fixed at original
		// issuance, never a resale price.
		if err := models.CheckListingPrice(listing.ListingPrice, ticket.FaceValue); err != nil {
			return err
		}

		query := `
			INSERT INTO listings (id, ticket_id, seller_contact, listing_price, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`

		_, err = tx.ExecContext(ctx, query,
			listing.ID,
			listing.TicketID,
			listing.SellerContact,
			listing.ListingPrice,
			listing.Status,
			listing.CreatedAt,
			listing.UpdatedAt,
		)
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return errors.New(errors.KindConcurrentModification, "a listing for this ticket was just created")
		}
		if err != nil {
			return err
		}

		ticket.Status = models.TicketStatusListed
		return updateTicketOwnership(ctx, tx, ticket)
	})
	if err != nil {
		return nil, err
	}

	return ticket, nil
}

func (r *Repositories) GetListing(ctx context.Context, id string) (*models.ResaleListing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	return scanListing(r.db.QueryRowContext(ctx, query, id))
}

// PurchaseListing closes the listing and starts a new ownership epoch for
// the buyer. Two concurrent buyers serialize on the listing row lock; the
// loser sees CONCURRENT_MODIFICATION.
func (r *Repositories) PurchaseListing(ctx context.Context, id, buyerContact string) (*models.ResaleListing, *models.Ticket, error) {
	var (
		listing *models.ResaleListing
		ticket  *models.Ticket
	)

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		listing, err = getListingForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if listing == nil {
			return errors.New(errors.KindNotFound, "listing not found")
		}
		if err := checkListingActive(listing); err != nil {
			return err
		}

		ticket, err = getTicketForUpdate(ctx, tx, listing.TicketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return errors.New(errors.KindNotFound, "ticket not found")
		}

		if err := closeListing(ctx, tx, listing, models.ListingStatusSold, &buyerContact); err != nil {
			return err
		}

		ticket.OwnerContact = buyerContact
		ticket.Status = models.TicketStatusActive
		ticket.Epoch++
		return updateTicketOwnership(ctx, tx, ticket)
	})
	if err != nil {
		return nil, nil, err
	}

	return listing, ticket, nil
}

func (r *Repositories) RemoveListing(ctx context.Context, id, requester string) (*models.ResaleListing, *models.Ticket, error) {
	var (
		listing *models.ResaleListing
		ticket  *models.Ticket
	)

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		listing, err = getListingForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if listing == nil {
			return errors.New(errors.KindNotFound, "listing not found")
		}
		if listing.SellerContact != requester {
			return errors.New(errors.KindValidation, "only the seller can remove a listing")
		}
		if err := checkListingActive(listing); err != nil {
			return err
		}

		ticket, err = getTicketForUpdate(ctx, tx, listing.TicketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return errors.New(errors.KindNotFound, "ticket not found")
		}

		if err := closeListing(ctx, tx, listing, models.ListingStatusRemoved, nil); err != nil {
			return err
		}

		ticket.Status = models.TicketStatusActive
		return updateTicketOwnership(ctx, tx, ticket)
	})
	if err != nil {
		return nil, nil, err
	}

	return listing, ticket, nil
}

func (r *Repositories) ListActiveListings(ctx context.Context) ([]models.ResaleListing, error) {
	var listings []models.ResaleListing
	query := `SELECT ` + listingColumns + ` FROM listings WHERE status = 'ACTIVE' ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var listing models.ResaleListing
		err := rows.Scan(
			&listing.ID,
			&listing.TicketID,
			&listing.SellerContact,
			&listing.ListingPrice,
			&listing.BuyerContact,
			&listing.Status,
			&listing.CreatedAt,
			&listing.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}

	return listings, rows.Err()
}

func checkListingActive(listing *models.ResaleListing) error {
	switch listing.Status {
	case models.ListingStatusActive:
		return nil
	case models.ListingStatusSold:
		return errors.New(errors.KindConcurrentModification, "this listing has already been sold")
	default:
		return errors.New(errors.KindNotFound, "this listing is no longer available")
	}
}

func getListingForUpdate(ctx context.Context, tx *sql.Tx, id string) (*models.ResaleListing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1 FOR UPDATE`
	return scanListing(tx.QueryRowContext(ctx, query, id))
}

func closeListing(ctx context.Context, tx *sql.Tx, listing *models.ResaleListing, status string, buyerContact *string) error {
	query := `
		UPDATE listings
		SET status = $1, buyer_contact = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at`

	err := tx.QueryRowContext(ctx, query, status, buyerContact, listing.ID).Scan(&listing.UpdatedAt)
	if err != nil {
		return err
	}
	listing.Status = status
	listing.BuyerContact = buyerContact
	return nil
}

func scanListing(row *sql.Row) (*models.ResaleListing, error) {
	listing := &models.ResaleListing{}
	err := row.Scan(
		&listing.ID,
		&listing.TicketID,
		&listing.SellerContact,
		&listing.ListingPrice,
		&listing.BuyerContact,
		&listing.Status,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return listing, nil
}
