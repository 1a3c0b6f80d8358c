package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/ports"

	_ "modernc.org/sqlite"
)

// timeLayout keeps stored timestamps lexically ordered so range filters can
// compare them as text.
const timeLayout = "2006-01-02T15:04:05Z"

type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListCharges implements ports.ChargeLister
func (r *SQLiteRepository) ListCharges(ctx context.Context, f ports.ChargeFilter) ([]core.RawCharge, error) {
	var (
		where []string
		args  []any
	)
	if f.CreatedFrom != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.CreatedFrom.UTC().Format(timeLayout))
	}
	if f.CreatedTo != nil {
		where = append(where, "created_at <= ?")
		args = append(args, f.CreatedTo.UTC().Format(timeLayout))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(core.ParseStatus(f.Status)))
	}

	query := `SELECT id, name, amount, billing_cycle, status, currency, created_at FROM charges`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query charges: %w", err)
	}
	defer rows.Close()

	var charges []core.RawCharge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate charges: %w", err)
	}

	slog.DebugContext(ctx, "Listed charges from SQLite", "count", len(charges))
	return charges, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCharge(s scanner) (core.RawCharge, error) {
	var (
		c      core.RawCharge
		amount string
	)
	if err := s.Scan(&c.ID, &c.Name, &amount, &c.BillingCycle, &c.Status, &c.Currency, &c.CreatedAt); err != nil {
		return core.RawCharge{}, fmt.Errorf("scan charge: %w", err)
	}
	c.Amount = amount
	return c, nil
}

// GetCharge returns a single charge or ports.ErrNotFound.
func (r *SQLiteRepository) GetCharge(ctx context.Context, id int64) (core.RawCharge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, amount, billing_cycle, status, currency, created_at FROM charges WHERE id = ?`, id)
	c, err := scanCharge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RawCharge{}, ports.ErrNotFound
	}
	if err != nil {
		return core.RawCharge{}, fmt.Errorf("get charge %d: %w", id, err)
	}
	return c, nil
}

// CreateCharge validates and inserts a charge, returning its id.
func (r *SQLiteRepository) CreateCharge(ctx context.Context, in core.ChargeInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	n := in.Normalized()
	amount, _ := core.ParseAmountString(n.Amount)
	now := r.now().UTC().Format(timeLayout)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO charges (name, amount, billing_cycle, status, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.Name, amount.String(), n.BillingCycle, n.Status, n.Currency, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert charge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}

	slog.InfoContext(ctx, "Charge saved to SQLite",
		"id", id,
		"name", n.Name,
		"amount", amount.String(),
		"billing_cycle", n.BillingCycle)

	return id, nil
}

func (r *SQLiteRepository) UpdateCharge(ctx context.Context, id int64, in core.ChargeInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	n := in.Normalized()
	amount, _ := core.ParseAmountString(n.Amount)

	res, err := r.db.ExecContext(ctx,
		`UPDATE charges SET name = ?, amount = ?, billing_cycle = ?, status = ?, currency = ?, updated_at = ?
		 WHERE id = ?`,
		n.Name, amount.String(), n.BillingCycle, n.Status, n.Currency, r.now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("update charge %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (r *SQLiteRepository) DeleteCharge(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM charges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete charge %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for charge %d: %w", id, err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// CountCharges is used by readiness probes.
func (r *SQLiteRepository) CountCharges(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM charges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count charges: %w", err)
	}
	return n, nil
}

// ImportCharges inserts rows as-is, keeping their created_at. Used to load
// seed data into an empty database.
func (r *SQLiteRepository) ImportCharges(ctx context.Context, charges []core.RawCharge) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO charges (name, amount, billing_cycle, status, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	now := r.now().UTC().Format(timeLayout)
	imported := 0
	for _, c := range charges {
		created := now
		if t, ok := core.ParseTimestamp(c.CreatedAt); ok {
			created = t.UTC().Format(timeLayout)
		}
		amount, ok := core.ParseAmount(c.Amount)
		if !ok || !core.InRange(amount) {
			slog.WarnContext(ctx, "Skipping seed charge with invalid amount", "name", c.Name)
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			strings.TrimSpace(c.Name), amount.String(),
			string(core.ParseBillingCycle(c.BillingCycle)), string(core.ParseStatus(c.Status)),
			strings.ToUpper(strings.TrimSpace(c.Currency)), created, now); err != nil {
			return 0, fmt.Errorf("import charge %q: %w", c.Name, err)
		}
		imported++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return imported, nil
}

// SchemaVersion reports the migration version of the open database.
func (r *SQLiteRepository) SchemaVersion() (uint, bool, error) {
	return SchemaVersion(r.dbPath)
}
