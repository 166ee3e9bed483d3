package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createTiersTable,
		createOrdersTable,
		createTicketsTable,
		createTransfersTable,
		createListingsTable,
		createPendingTransferIndex,
		createActiveListingIndex,
		createTicketOwnerIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createTiersTable = `
CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
CREATE TABLE IF NOT EXISTS tiers (
    id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
    name VARCHAR(255) NOT NULL,
    unit_price DECIMAL(10,2) NOT NULL CHECK (unit_price >= 0),
    service_fee DECIMAL(10,2) NOT NULL DEFAULT 0 CHECK (service_fee >= 0),
    total_quantity INTEGER NOT NULL CHECK (total_quantity >= 0),
    available_quantity INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (available_quantity >= 0 AND available_quantity <= total_quantity)
);`

const createOrdersTable = `
CREATE TABLE IF NOT EXISTS orders (
    id UUID PRIMARY KEY,
    tier_id UUID NOT NULL REFERENCES tiers(id),
    buyer_name VARCHAR(255) NOT NULL,
    buyer_email VARCHAR(255) NOT NULL,
    quantity INTEGER NOT NULL CHECK (quantity >= 1),
    unit_price DECIMAL(10,2) NOT NULL,
    service_fee DECIMAL(10,2) NOT NULL,
    total_paid DECIMAL(10,2) NOT NULL,
    payment_ref VARCHAR(255) NOT NULL,
    idempotency_key VARCHAR(255) UNIQUE NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'CONFIRMED',
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (status IN ('CONFIRMED', 'REFUNDED', 'CANCELLED'))
);`

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id UUID PRIMARY KEY,
    order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    tier_id UUID NOT NULL REFERENCES tiers(id),
    owner_contact VARCHAR(255) NOT NULL,
    face_value DECIMAL(10,2) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
    epoch INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (status IN ('ACTIVE', 'TRANSFERRED', 'LISTED', 'SOLD', 'VOID'))
);`

const createTransfersTable = `
CREATE TABLE IF NOT EXISTS transfers (
    id UUID PRIMARY KEY,
    ticket_id UUID NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
    from_owner VARCHAR(255) NOT NULL,
    method VARCHAR(10) NOT NULL,
    to_contact VARCHAR(255),
    link_token VARCHAR(64),
    status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
    accepted_by VARCHAR(255),
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (method IN ('email', 'link')),
    CHECK (status IN ('PENDING', 'ACCEPTED', 'CANCELLED', 'EXPIRED'))
);`

const createListingsTable = `
CREATE TABLE IF NOT EXISTS listings (
    id UUID PRIMARY KEY,
    ticket_id UUID NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
    seller_contact VARCHAR(255) NOT NULL,
    listing_price DECIMAL(10,2) NOT NULL CHECK (listing_price >= 0),
    buyer_contact VARCHAR(255),
    status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW(),

    CHECK (status IN ('ACTIVE', 'SOLD', 'REMOVED'))
);`

// One outstanding offer per ticket: the partial unique indexes make the
// single-pending-transfer and single-active-listing invariants hold even if
// application-level checks race.
const createPendingTransferIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS transfers_pending_ticket_idx
ON transfers (ticket_id) WHERE status = 'PENDING';`

const createActiveListingIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS listings_active_ticket_idx
ON listings (ticket_id) WHERE status = 'ACTIVE';`

const createTicketOwnerIndex = `
CREATE INDEX IF NOT EXISTS tickets_owner_contact_idx
ON tickets (owner_contact);`
