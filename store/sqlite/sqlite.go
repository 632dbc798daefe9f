/*
Package sqlite provides the SQLite-backed implementation of the ledger store.

PURPOSE:
  Implements ledger.QueryStore. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

DEDUPLICATION:
  The UNIQUE index on purchases.settlement_hash is the race-resolution point
  for concurrent submissions of the same settlement. There is no read-then-
  insert window: the insert either wins or surfaces the unique violation,
  which is mapped to ledger.ErrDuplicateSettlement.

ATOMIC PAIR WRITES:
  RecordPair writes the purchase and its transaction inside one SQL
  transaction. Either both rows persist or neither does.

KEY TABLES:
  purchases:    one row per settlement attempt
  transactions: 1:1 audit rows keyed by settlement_hash

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so aggregation reads do not
  block ingestion writes.

USAGE:
  st, err := sqlite.New("./data/market.db")
  if err != nil { ... }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool with versioned migrations.

SEE ALSO:
  - ledger/store.go: interface contracts
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prism/market-ledger/ledger"
	"github.com/shopspring/decimal"
)

// timeLayout is RFC 3339 with a fixed-width nanosecond fraction. Timestamps
// are range-filtered and ordered with string comparison in SQL, so the
// encoding must be lexicographically ordered; RFC3339Nano trims trailing
// zeros and is not ("...00.3Z" sorts before "...00Z").
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements ledger.QueryStore using SQLite. *sql.DB is safe for
// concurrent use; WAL keeps aggregation reads from blocking writes.
type Store struct {
	db *sql.DB
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Purchases: one row per settlement attempt. Never deleted.
	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		buyer_address TEXT NOT NULL,
		seller_address TEXT NOT NULL,
		settlement_hash TEXT NOT NULL,
		price_base TEXT NOT NULL,
		price_token TEXT NOT NULL,
		price_usd REAL NOT NULL DEFAULT 0,
		network TEXT NOT NULL,
		rail TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at-most-once recording. The insert hitting this index is the
	-- race-resolution point for concurrent duplicate submissions.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_purchases_settlement_hash
		ON purchases(settlement_hash);

	CREATE INDEX IF NOT EXISTS idx_purchases_status_created
		ON purchases(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_purchases_item
		ON purchases(item_id);
	CREATE INDEX IF NOT EXISTS idx_purchases_buyer
		ON purchases(buyer_address);
	CREATE INDEX IF NOT EXISTS idx_purchases_seller
		ON purchases(seller_address);

	-- Transactions: audit record per purchase, keyed by settlement hash.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		settlement_hash TEXT NOT NULL,
		rail TEXT NOT NULL,
		fee_amount TEXT NOT NULL,
		fee_percentage TEXT NOT NULL,
		seller_amount TEXT NOT NULL,
		chain_id INTEGER NOT NULL DEFAULT 0,
		block_number INTEGER NOT NULL DEFAULT 0,
		gas_used TEXT,
		gas_price TEXT,
		token_contract TEXT,
		token_symbol TEXT,
		token_decimals INTEGER NOT NULL DEFAULT 0,
		confirmed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_settlement_hash
		ON transactions(settlement_hash);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WRITE PATH (ledger.Store interface)
// =============================================================================

// RecordPair persists a purchase and its transaction atomically.
func (s *Store) RecordPair(ctx context.Context, p ledger.Purchase, t ledger.Transaction) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO purchases
		(id, item_id, buyer_address, seller_address, settlement_hash,
		 price_base, price_token, price_usd, network, rail, kind, status,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ItemID, p.Buyer, p.Seller, p.SettlementHash,
		p.PriceBase.String(), p.PriceToken.String(), p.PriceUSD,
		p.Network, p.Rail, p.Kind, p.Status,
		p.CreatedAt.UTC().Format(timeLayout),
		p.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateSettlement
		}
		return fmt.Errorf("failed to insert purchase: %w", err)
	}

	var confirmedAt *string
	if t.ConfirmedAt != nil {
		v := t.ConfirmedAt.UTC().Format(timeLayout)
		confirmedAt = &v
	}

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO transactions
		(id, settlement_hash, rail, fee_amount, fee_percentage, seller_amount,
		 chain_id, block_number, gas_used, gas_price,
		 token_contract, token_symbol, token_decimals, confirmed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SettlementHash, t.Rail,
		t.FeeAmount.String(), t.FeePercentage.String(), t.SellerAmount.String(),
		t.ChainID, t.BlockNumber,
		nullString(t.GasUsed), nullString(t.GasPrice),
		nullString(t.TokenContract), nullString(t.TokenSymbol), t.TokenDecimals,
		confirmedAt,
		t.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateSettlement
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return sqlTx.Commit()
}

// =============================================================================
// LOOKUPS
// =============================================================================

// PairByHash returns the recorded pair for a settlement hash.
func (s *Store) PairByHash(ctx context.Context, hash ledger.SettlementHash) (*ledger.Receipt, error) {
	purchases, err := s.queryPurchases(ctx,
		purchaseColumns+` FROM purchases WHERE settlement_hash = ?`, hash)
	if err != nil {
		return nil, err
	}
	if len(purchases) == 0 {
		return nil, ledger.ErrNotRecorded
	}

	tx, err := s.transactionByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	return &ledger.Receipt{Purchase: purchases[0], Transaction: *tx}, nil
}

func (s *Store) transactionByHash(ctx context.Context, hash ledger.SettlementHash) (*ledger.Transaction, error) {
	var (
		t           ledger.Transaction
		fee         string
		feePct      string
		sellerAmt   string
		gasUsed     sql.NullString
		gasPrice    sql.NullString
		tokenCt     sql.NullString
		tokenSym    sql.NullString
		confirmedAt sql.NullString
		createdAt   string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, settlement_hash, rail, fee_amount, fee_percentage, seller_amount,
		       chain_id, block_number, gas_used, gas_price,
		       token_contract, token_symbol, token_decimals, confirmed_at, created_at
		FROM transactions WHERE settlement_hash = ?`, hash).Scan(
		&t.ID, &t.SettlementHash, &t.Rail, &fee, &feePct, &sellerAmt,
		&t.ChainID, &t.BlockNumber, &gasUsed, &gasPrice,
		&tokenCt, &tokenSym, &t.TokenDecimals, &confirmedAt, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotRecorded
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	t.FeeAmount = mustDecimal(fee)
	t.FeePercentage = mustDecimal(feePct)
	t.SellerAmount = mustDecimal(sellerAmt)
	t.GasUsed = gasUsed.String
	t.GasPrice = gasPrice.String
	t.TokenContract = tokenCt.String
	t.TokenSymbol = tokenSym.String
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if confirmedAt.Valid {
		v, _ := time.Parse(time.RFC3339Nano, confirmedAt.String)
		t.ConfirmedAt = &v
	}
	return &t, nil
}

// =============================================================================
// READ QUERIES (ledger.QueryStore interface)
// =============================================================================

func (s *Store) CountConfirmed(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchases WHERE status = ?`, ledger.StatusConfirmed,
	).Scan(&n)
	return n, err
}

func (s *Store) AllConfirmed(ctx context.Context) ([]ledger.Purchase, error) {
	return s.queryPurchases(ctx, purchaseColumns+`
		FROM purchases
		WHERE status = ?
		ORDER BY created_at ASC, id ASC`, ledger.StatusConfirmed)
}

func (s *Store) ConfirmedInRange(ctx context.Context, from, to time.Time) ([]ledger.Purchase, error) {
	return s.queryPurchases(ctx, purchaseColumns+`
		FROM purchases
		WHERE status = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC, id ASC`,
		ledger.StatusConfirmed,
		from.UTC().Format(timeLayout),
		to.UTC().Format(timeLayout))
}

const purchaseColumns = `
	SELECT id, item_id, buyer_address, seller_address, settlement_hash,
	       price_base, price_token, price_usd, network, rail, kind, status,
	       created_at, updated_at`

func (s *Store) queryPurchases(ctx context.Context, query string, args ...any) ([]ledger.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []ledger.Purchase
	for rows.Next() {
		var (
			p          ledger.Purchase
			priceBase  string
			priceToken string
			createdAt  string
			updatedAt  string
		)
		if err := rows.Scan(
			&p.ID, &p.ItemID, &p.Buyer, &p.Seller, &p.SettlementHash,
			&priceBase, &priceToken, &p.PriceUSD, &p.Network, &p.Rail, &p.Kind, &p.Status,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		p.PriceBase = mustDecimal(priceBase)
		p.PriceToken = mustDecimal(priceToken)
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
