// Package store implements the order store: an in-memory map for tests and
// local runs, and a database/sql store for sqlite and postgres (pgx).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/jcmexdev/order-saga/internal/order-service/domain"
	"github.com/jcmexdev/order-saga/internal/order-service/ports"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

var ErrDuplicate = errors.New("order already exists")

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    total      TEXT NOT NULL,
    status     TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_owner ON orders(owner_id, created_at);
CREATE TABLE IF NOT EXISTS order_lines (
    order_id   TEXT    NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    line_no    INTEGER NOT NULL,
    product_id TEXT    NOT NULL,
    quantity   INTEGER NOT NULL CHECK (quantity > 0),
    unit_price TEXT    NOT NULL,
    PRIMARY KEY (order_id, line_no)
);`

// SQL stores orders through database/sql. Queries are written with '?'
// placeholders and rebound for postgres.
type SQL struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

var _ ports.OrderStore = (*SQL)(nil)

// Open connects to the given driver and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*SQL, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "orders.db"
		}
		if !strings.Contains(dsn, "_pragma") {
			dsn = dsn + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
	case DriverPgx:
	default:
		return nil, fmt.Errorf("unsupported order store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s order store: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s order store: %w", driver, err)
	}

	s := NewSQL(db, driver)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQL wraps an already opened handle without touching the schema.
func NewSQL(db *sql.DB, driver string) *SQL {
	return &SQL{db: db, driver: driver, now: time.Now}
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply order store schema: %w", err)
		}
	}
	return nil
}

// Create writes the order and its lines in one transaction.
func (s *SQL) Create(ctx context.Context, order *domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback()

	r := rowFromOrder(order)
	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO orders (id, owner_id, total, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		r.ID, r.OwnerID, r.Total.String(), r.Status, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}

	insertLine := s.rebind(
		`INSERT INTO order_lines (order_id, line_no, product_id, quantity, unit_price) VALUES (?, ?, ?, ?, ?)`)
	for _, l := range linesFromOrder(order) {
		if _, err := tx.ExecContext(ctx, insertLine, l.OrderID, l.LineNo, l.ProductID, l.Quantity, l.UnitPrice.String()); err != nil {
			return fmt.Errorf("insert line %d of order %s: %w", l.LineNo, order.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order %s: %w", order.ID, err)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, id string) (*domain.Order, error) {
	var r orderRow
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, owner_id, total, status, created_at, updated_at FROM orders WHERE id = ?`), id,
	).Scan(&r.ID, &r.OwnerID, &r.Total, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	lines, err := s.lines(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.toDomain(lines)
}

func (s *SQL) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, owner_id, total, status, created_at, updated_at FROM orders WHERE owner_id = ? ORDER BY created_at, id`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list orders of %s: %w", ownerID, err)
	}

	var heads []orderRow
	for rows.Next() {
		var r orderRow
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Total, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		heads = append(heads, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders of %s: %w", ownerID, err)
	}

	out := make([]*domain.Order, 0, len(heads))
	for _, r := range heads {
		lines, err := s.lines(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		o, err := r.toDomain(lines)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *SQL) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		string(to), formatTime(s.now()), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	return affectedOne(res, id)
}

func (s *SQL) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete order: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM order_lines WHERE order_id = ?`), id); err != nil {
		return fmt.Errorf("delete lines of order %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM orders WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	if err := affectedOne(res, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete order %s: %w", id, err)
	}
	return nil
}

func (s *SQL) lines(ctx context.Context, orderID string) ([]lineRow, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT order_id, line_no, product_id, quantity, unit_price FROM order_lines WHERE order_id = ? ORDER BY line_no`), orderID)
	if err != nil {
		return nil, fmt.Errorf("lines of order %s: %w", orderID, err)
	}
	defer rows.Close()

	var out []lineRow
	for rows.Next() {
		var l lineRow
		if err := rows.Scan(&l.OrderID, &l.LineNo, &l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan line of order %s: %w", orderID, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// rebind turns '?' placeholders into $n for postgres.
func (s *SQL) rebind(query string) string {
	if s.driver != DriverPgx {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func affectedOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for order %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
