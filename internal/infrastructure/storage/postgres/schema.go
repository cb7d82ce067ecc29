package postgres

import (
	"context"
	"fmt"

	"mise/pkg/logger"
)

// schemaDDL bootstraps the inventory schema. Statements are idempotent
// so the server can run them on every start.
//
// Quantities and money are stored as scaled BIGINT (see types.Quantity
// and types.MinorUnits), which keeps running-count adjustments to a
// single atomic `SET x = x + $1` increment.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS cat_supplier_goods (
		id                        UUID PRIMARY KEY,
		business_id               UUID NOT NULL,
		name                      TEXT NOT NULL,
		measurement_unit          TEXT NOT NULL,
		par_level                 BIGINT NOT NULL DEFAULT 0,
		dynamic_count             BIGINT NOT NULL DEFAULT 0,
		last_inventory_count_date TIMESTAMPTZ,
		created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at                TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_supplier_goods_business
		ON cat_supplier_goods (business_id)`,

	`CREATE TABLE IF NOT EXISTS cat_business_goods (
		id          UUID PRIMARY KEY,
		business_id UUID NOT NULL,
		name        TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cat_business_good_ingredients (
		business_good_id  UUID NOT NULL REFERENCES cat_business_goods (id) ON DELETE CASCADE,
		supplier_good_id  UUID NOT NULL REFERENCES cat_supplier_goods (id),
		measurement_unit  TEXT NOT NULL,
		required_quantity BIGINT NOT NULL,
		position          INT NOT NULL DEFAULT 0,
		PRIMARY KEY (business_good_id, supplier_good_id)
	)`,
	`CREATE TABLE IF NOT EXISTS cat_business_good_members (
		business_good_id        UUID NOT NULL REFERENCES cat_business_goods (id) ON DELETE CASCADE,
		member_business_good_id UUID NOT NULL REFERENCES cat_business_goods (id),
		position                INT NOT NULL DEFAULT 0,
		PRIMARY KEY (business_good_id, member_business_good_id)
	)`,

	`CREATE TABLE IF NOT EXISTS doc_inventory_cycles (
		id              UUID PRIMARY KEY,
		business_id     UUID NOT NULL,
		title           TEXT NOT NULL,
		set_final_count BOOLEAN NOT NULL DEFAULT FALSE,
		comments        TEXT NOT NULL DEFAULT '',
		counted_date    TIMESTAMPTZ,
		done_by         UUID[] NOT NULL DEFAULT '{}',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// One open cycle per business, enforced at the storage layer.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_open_cycle_per_business
		ON doc_inventory_cycles (business_id) WHERE NOT set_final_count`,

	`CREATE TABLE IF NOT EXISTS doc_inventory_cycle_goods (
		cycle_id                  UUID NOT NULL REFERENCES doc_inventory_cycles (id) ON DELETE CASCADE,
		supplier_good_id          UUID NOT NULL REFERENCES cat_supplier_goods (id),
		dynamic_system_count      BIGINT NOT NULL DEFAULT 0,
		average_deviation_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (cycle_id, supplier_good_id)
	)`,
	// Count ids are UUIDv7, so id order is time order within an entry.
	`CREATE TABLE IF NOT EXISTS doc_inventory_cycle_counts (
		id                     UUID PRIMARY KEY,
		cycle_id               UUID NOT NULL,
		supplier_good_id       UUID NOT NULL,
		kind                   TEXT NOT NULL,
		system_count           BIGINT NOT NULL,
		current_count_quantity BIGINT NOT NULL,
		counted_by             UUID NOT NULL,
		counted_at             TIMESTAMPTZ NOT NULL,
		quantity_needed        BIGINT NOT NULL,
		deviation_percent      DOUBLE PRECISION NOT NULL,
		comments               TEXT NOT NULL DEFAULT '',
		reedited               JSONB,
		FOREIGN KEY (cycle_id, supplier_good_id)
			REFERENCES doc_inventory_cycle_goods (cycle_id, supplier_good_id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cycle_counts_entry
		ON doc_inventory_cycle_counts (cycle_id, supplier_good_id, id)`,

	`CREATE TABLE IF NOT EXISTS doc_purchases (
		id            UUID PRIMARY KEY,
		business_id   UUID NOT NULL,
		title         TEXT NOT NULL,
		purchase_date TIMESTAMPTZ NOT NULL,
		total_amount  BIGINT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_business
		ON doc_purchases (business_id)`,
	`CREATE TABLE IF NOT EXISTS doc_purchase_items (
		id                 UUID PRIMARY KEY,
		purchase_id        UUID NOT NULL REFERENCES doc_purchases (id) ON DELETE CASCADE,
		supplier_good_id   UUID NOT NULL REFERENCES cat_supplier_goods (id),
		quantity_purchased BIGINT NOT NULL,
		purchase_price     BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchase_items_purchase
		ON doc_purchase_items (purchase_id)`,
}

// Bootstrap applies the schema DDL.
func Bootstrap(ctx context.Context, pool *Pool) error {
	for _, stmt := range schemaDDL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	logger.Info(ctx, "database schema bootstrapped", "statements", len(schemaDDL))
	return nil
}
