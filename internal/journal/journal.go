// Package journal persists signal and order history to SQLite. Writes are
// best effort: the pipeline keeps trading when the journal is unavailable.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yciu/futures-pipeline/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SignalRecord is one journaled trading signal.
type SignalRecord struct {
	ID          int64
	When        time.Time
	Operation   string
	CommodityID string
	CreatedAt   time.Time
}

// OrderRecord is one journaled order attempt and its outcome.
type OrderRecord struct {
	ID          int64
	ItemCode    string
	Side        string
	Quantity    int64
	Price       decimal.Decimal
	Status      string
	OrderSerial string
	ErrorText   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Order outcome statuses.
const (
	OrderStatusSubmitted = "SUBMITTED"
	OrderStatusAccepted  = "ACCEPTED"
	OrderStatusRejected  = "REJECTED"
	OrderStatusFailed    = "FAILED"
)

// Journal implements the persistence layer using SQLite.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	j := &Journal{db: db}

	if err := j.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return j, nil
}

// Migrate runs database migrations.
func (j *Journal) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			emitted_at DATETIME NOT NULL,
			operation TEXT NOT NULL,
			commodity_id TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_emitted_at ON signals(emitted_at)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_code TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price TEXT NOT NULL DEFAULT '0',
			status TEXT NOT NULL,
			order_serial TEXT,
			error_text TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_item_code ON orders(item_code)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	}

	for _, migration := range migrations {
		if _, err := j.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// SaveSignal records an emitted trading signal.
func (j *Journal) SaveSignal(ctx context.Context, sig types.TradingSignal) error {
	query := `INSERT INTO signals (emitted_at, operation, commodity_id) VALUES (?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		sig.When,
		sig.Operation.String(),
		sig.CommodityID,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}

	return nil
}

// SaveOrder records an order attempt and returns its journal id.
func (j *Journal) SaveOrder(ctx context.Context, order types.OrderRequest) (int64, error) {
	query := `INSERT INTO orders (item_code, side, quantity, price, status)
		VALUES (?, ?, ?, ?, ?)`

	res, err := j.db.ExecContext(ctx, query,
		order.ItemCode,
		order.Side.String(),
		order.Quantity,
		order.Price.String(),
		OrderStatusSubmitted,
	)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("order id: %w", err)
	}
	return id, nil
}

// UpdateOrderResult records the gateway outcome for a journaled order.
func (j *Journal) UpdateOrderResult(ctx context.Context, id int64, status, orderSerial, errorText string) error {
	query := `UPDATE orders SET status = ?, order_serial = ?, error_text = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	_, err := j.db.ExecContext(ctx, query, status, orderSerial, errorText, id)
	if err != nil {
		return fmt.Errorf("update order result: %w", err)
	}

	return nil
}

// RecentSignals returns the most recent signals, newest first.
func (j *Journal) RecentSignals(ctx context.Context, limit int) ([]SignalRecord, error) {
	query := `SELECT id, emitted_at, operation, commodity_id, created_at
		FROM signals ORDER BY id DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []SignalRecord
	for rows.Next() {
		var r SignalRecord
		if err := rows.Scan(&r.ID, &r.When, &r.Operation, &r.CommodityID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// RecentOrders returns the most recent order records, newest first.
func (j *Journal) RecentOrders(ctx context.Context, limit int) ([]OrderRecord, error) {
	query := `SELECT id, item_code, side, quantity, price, status, order_serial, error_text, created_at, updated_at
		FROM orders ORDER BY id DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []OrderRecord
	for rows.Next() {
		var r OrderRecord
		var price string
		var serial, errText sql.NullString

		if err := rows.Scan(&r.ID, &r.ItemCode, &r.Side, &r.Quantity, &price, &r.Status, &serial, &errText, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r.Price, _ = decimal.NewFromString(price)
		r.OrderSerial = serial.String
		r.ErrorText = errText.String

		records = append(records, r)
	}

	return records, rows.Err()
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}
