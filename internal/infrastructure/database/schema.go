package database

import (
	"context"
	"fmt"
	"time"
)

// schema is the settlement core's DDL. All statements are idempotent so the
// daemon can apply them on every start. Amount columns are NUMERIC(78,0) and
// scanned into Go strings: 78 digits covers a full uint256, and nothing in
// this schema ever touches a floating-point representation.
const schema = `
CREATE TABLE IF NOT EXISTS chain_cursors (
    chain_id         TEXT NOT NULL,
    contract_address TEXT NOT NULL,
    position         BIGINT NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (chain_id, contract_address)
);

CREATE TABLE IF NOT EXISTS deposit_events (
    id               BIGSERIAL PRIMARY KEY,
    chain_id         TEXT NOT NULL,
    contract_address TEXT NOT NULL,
    payer            TEXT NOT NULL,
    order_id         TEXT NOT NULL,
    amount           NUMERIC(78,0) NOT NULL,
    tx_id            TEXT NOT NULL,
    event_index      BIGINT NOT NULL,
    position         BIGINT NOT NULL,
    event_time       TIMESTAMPTZ NOT NULL,
    processed        BOOLEAN NOT NULL DEFAULT FALSE,
    match_attempts   INTEGER NOT NULL DEFAULT 0,
    needs_review     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (chain_id, tx_id, event_index)
);

CREATE INDEX IF NOT EXISTS idx_deposit_events_order_id
    ON deposit_events (order_id);
CREATE INDEX IF NOT EXISTS idx_deposit_events_open
    ON deposit_events (created_at)
    WHERE NOT processed AND NOT needs_review;

CREATE TABLE IF NOT EXISTS orders (
    order_id      TEXT PRIMARY KEY,
    broker_id     TEXT NOT NULL,
    account_id    TEXT NOT NULL,
    amount        NUMERIC(78,0) NOT NULL,
    token_address TEXT NOT NULL,
    chain_id      TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending',
    settled_tx    TEXT,
    notified      BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_orders_unnotified
    ON orders (updated_at)
    WHERE status IN ('completed', 'failed') AND NOT notified;

CREATE TABLE IF NOT EXISTS settlement_anomalies (
    id          BIGSERIAL PRIMARY KEY,
    order_id    TEXT NOT NULL,
    chain_id    TEXT NOT NULL,
    tx_id       TEXT NOT NULL,
    event_index BIGINT NOT NULL,
    reason      TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS account_balances (
    broker_id     TEXT NOT NULL,
    account_id    TEXT NOT NULL,
    token_address TEXT NOT NULL,
    chain_id      TEXT NOT NULL,
    balance       NUMERIC(78,0) NOT NULL DEFAULT 0,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (broker_id, account_id, token_address, chain_id)
);
`

// Migrate applies the embedded schema
func (p *PostgresDB) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	p.logger.Info("Database schema up to date")
	return nil
}
