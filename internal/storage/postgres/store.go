package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS swap_alerts (
	id              UUID PRIMARY KEY,
	chain_id        BIGINT NOT NULL,
	kind            TEXT NOT NULL,
	block_number    BIGINT NOT NULL,
	tx_hash         TEXT NOT NULL,
	actor           TEXT NOT NULL,
	actor_name      TEXT NOT NULL DEFAULT '',
	swap_kind       TEXT NOT NULL DEFAULT '',
	spent_token     TEXT NOT NULL DEFAULT '',
	spent_symbol    TEXT NOT NULL DEFAULT '',
	spent_amount    NUMERIC,
	received_token  TEXT NOT NULL DEFAULT '',
	received_symbol TEXT NOT NULL DEFAULT '',
	received_amount NUMERIC,
	description     TEXT NOT NULL DEFAULT '',
	detected_at     TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (chain_id, tx_hash, actor, kind)
)`

// Store archives alerts in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the swap_alerts table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create swap_alerts: %w", err)
	}
	return nil
}

// alertRow flattens an alert into swap_alerts columns.
type alertRow struct {
	spentToken, spentSymbol, spentAmount          string
	receivedToken, receivedSymbol, receivedAmount string
	swapKind                                      string
}

func rowOf(alert model.Alert) alertRow {
	var row alertRow
	switch {
	case alert.Swap != nil:
		row.swapKind = string(alert.Swap.Kind)
		row.spentToken, row.spentSymbol, row.spentAmount = legColumns(alert.Swap.Spent)
		row.receivedToken, row.receivedSymbol, row.receivedAmount = legColumns(alert.Swap.Received)
	case alert.Transfer != nil:
		token, symbol, amount := legColumns(alert.Transfer.Leg)
		if alert.Transfer.Direction == model.TransferOut {
			row.spentToken, row.spentSymbol, row.spentAmount = token, symbol, amount
		} else {
			row.receivedToken, row.receivedSymbol, row.receivedAmount = token, symbol, amount
		}
	}
	return row
}

func legColumns(leg model.LegAmount) (string, string, string) {
	token := ""
	if leg.Kind == model.AssetToken {
		token = strings.ToLower(leg.Address.Hex())
	}
	amount := leg.Amount
	if amount == "" && leg.Raw != nil {
		amount = model.FormatAmount(leg.Raw, leg.Decimals)
	}
	return token, leg.Symbol, amount
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// PutAlerts inserts alerts in one batch. Re-archiving the same transaction
// outcome refreshes the stored row.
func (s *Store) PutAlerts(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, alert := range alerts {
		row := rowOf(alert)
		batch.Queue(`
			INSERT INTO swap_alerts (
				id, chain_id, kind, block_number, tx_hash, actor, actor_name, swap_kind,
				spent_token, spent_symbol, spent_amount, received_token, received_symbol, received_amount,
				description, detected_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			ON CONFLICT (chain_id, tx_hash, actor, kind)
			DO UPDATE SET
				actor_name = EXCLUDED.actor_name,
				swap_kind = EXCLUDED.swap_kind,
				spent_token = EXCLUDED.spent_token,
				spent_symbol = EXCLUDED.spent_symbol,
				spent_amount = EXCLUDED.spent_amount,
				received_token = EXCLUDED.received_token,
				received_symbol = EXCLUDED.received_symbol,
				received_amount = EXCLUDED.received_amount,
				description = EXCLUDED.description
		`,
			alert.ID,
			int64(alert.ChainID),
			string(alert.Kind),
			int64(alert.BlockNumber),
			alert.TxHash.Hex(),
			strings.ToLower(alert.Actor.Hex()),
			alert.ActorName,
			row.swapKind,
			row.spentToken,
			row.spentSymbol,
			nullable(row.spentAmount),
			row.receivedToken,
			row.receivedSymbol,
			nullable(row.receivedAmount),
			alert.Description,
			alert.DetectedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range alerts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert swap alert: %w", err)
		}
	}
	return nil
}
