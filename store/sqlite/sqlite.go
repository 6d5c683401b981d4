/*
Package sqlite provides a SQLite-backed implementation of bonus.Store.

PURPOSE:
  Persists the roster and the singleton parameter set. Breakdowns are
  never stored: they are recomputed from these two on every read.

KEY TABLES:
  persons:    One row per roster entry. Revenue is a JSON array of six
              decimal strings; optional amounts are NULL when absent.
  parameters: Exactly one row (id = 1) once an operator has saved a set.

MONEY:
  Every amount and rate is stored as TEXT through decimal.Decimal's
  driver.Valuer, so values round-trip without float drift.

ORDERING:
  ListPersons returns rows in insertion order (rowid). Updates keep the
  original position.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite serializes writers anyway;
  the mutex keeps read-modify-write sequences consistent.

USAGE:
  store, err := sqlite.New("./data/bonus.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). Tables are created if missing and
  never altered in place.

SEE ALSO:
  - bonus/store.go: Interface definitions
  - store/memory: In-memory implementation for tests and the CLI
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/trouble2112/Bouns-tools/bonus"
)

// Store implements bonus.Store using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

var _ bonus.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
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

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS persons (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		region TEXT NOT NULL DEFAULT '',
		org TEXT NOT NULL DEFAULT '',
		revenue_json TEXT NOT NULL,
		company_revenue TEXT,
		target TEXT NOT NULL,
		collection_rate TEXT NOT NULL,
		ratio TEXT,
		region_90 INTEGER NOT NULL DEFAULT 0,
		region_100 INTEGER NOT NULL DEFAULT 0,
		national_90 INTEGER NOT NULL DEFAULT 0,
		national_100 INTEGER NOT NULL DEFAULT 0,
		ceo_bonus TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_persons_role ON persons(role);
	CREATE INDEX IF NOT EXISTS idx_persons_org ON persons(org);

	-- Singleton row
	CREATE TABLE IF NOT EXISTS parameters (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		coefficients_json TEXT NOT NULL,
		threshold_90 TEXT NOT NULL,
		threshold_100 TEXT NOT NULL,
		dm_mode TEXT NOT NULL,
		other_mode TEXT NOT NULL,
		cp_subsidy TEXT NOT NULL,
		sales_subsidy TEXT NOT NULL,
		split_payout INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PERSON STORE (bonus.PersonStore interface)
// =============================================================================

const personColumns = `id, name, role, region, org, revenue_json, company_revenue, target,
	collection_rate, ratio, region_90, region_100, national_90, national_100,
	ceo_bonus, created_at, updated_at`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ListPersons returns every person in insertion order.
func (s *Store) ListPersons(ctx context.Context) ([]bonus.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+personColumns+" FROM persons ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	persons := []bonus.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

// GetPerson retrieves a person by ID. Returns (nil, nil) if not found.
func (s *Store) GetPerson(ctx context.Context, id string) (*bonus.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getPerson(ctx, s.db, id)
}

// CreatePerson inserts a new person, assigning an ID if none is set.
func (s *Store) CreatePerson(ctx context.Context, p bonus.Person) (bonus.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertPerson(ctx, s.db, p)
}

// UpdatePerson replaces every field of an existing person except CreatedAt.
func (s *Store) UpdatePerson(ctx context.Context, p bonus.Person) (bonus.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revenueJSON, err := json.Marshal(p.Revenue)
	if err != nil {
		return bonus.Person{}, fmt.Errorf("failed to encode revenue: %w", err)
	}

	query := `
		UPDATE persons SET
			name = ?, role = ?, region = ?, org = ?, revenue_json = ?,
			company_revenue = ?, target = ?, collection_rate = ?, ratio = ?,
			region_90 = ?, region_100 = ?, national_90 = ?, national_100 = ?,
			ceo_bonus = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		p.Name, string(p.Role), p.Region, p.Org, string(revenueJSON),
		p.CompanyRevenue, p.Target, p.CollectionRate, p.Ratio,
		p.Region90, p.Region100, p.National90, p.National100,
		p.CEOBonus, s.now().Format(time.RFC3339Nano),
		p.ID,
	)
	if err != nil {
		return bonus.Person{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return bonus.Person{}, err
	} else if n == 0 {
		return bonus.Person{}, fmt.Errorf("%w: %s", bonus.ErrPersonNotFound, p.ID)
	}

	updated, err := getPerson(ctx, s.db, p.ID)
	if err != nil {
		return bonus.Person{}, err
	}
	return *updated, nil
}

// DeletePerson removes a person.
func (s *Store) DeletePerson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", bonus.ErrPersonNotFound, id)
	}
	return nil
}

// DeleteAllPersons clears the roster. Parameters are kept.
func (s *Store) DeleteAllPersons(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM persons")
	return err
}

// ReplacePersons clears the roster and inserts persons in one transaction.
func (s *Store) ReplacePersons(ctx context.Context, persons []bonus.Person) ([]bonus.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM persons"); err != nil {
		return nil, err
	}

	out := make([]bonus.Person, 0, len(persons))
	for _, p := range persons {
		created, err := s.insertPerson(ctx, tx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) insertPerson(ctx context.Context, db execer, p bonus.Person) (bonus.Person, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now

	revenueJSON, err := json.Marshal(p.Revenue)
	if err != nil {
		return bonus.Person{}, fmt.Errorf("failed to encode revenue: %w", err)
	}

	query := `INSERT INTO persons (` + personColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.ExecContext(ctx, query,
		p.ID, p.Name, string(p.Role), p.Region, p.Org, string(revenueJSON),
		p.CompanyRevenue, p.Target, p.CollectionRate, p.Ratio,
		p.Region90, p.Region100, p.National90, p.National100,
		p.CEOBonus,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if isUniqueConstraintError(err) {
		return bonus.Person{}, fmt.Errorf("%w: %s", bonus.ErrDuplicatePerson, p.ID)
	}
	if err != nil {
		return bonus.Person{}, err
	}
	return p, nil
}

func getPerson(ctx context.Context, db execer, id string) (*bonus.Person, error) {
	row := db.QueryRowContext(ctx, "SELECT "+personColumns+" FROM persons WHERE id = ?", id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (bonus.Person, error) {
	var p bonus.Person
	var role, revenueJSON, createdAt, updatedAt string

	err := row.Scan(
		&p.ID, &p.Name, &role, &p.Region, &p.Org, &revenueJSON,
		&p.CompanyRevenue, &p.Target, &p.CollectionRate, &p.Ratio,
		&p.Region90, &p.Region100, &p.National90, &p.National100,
		&p.CEOBonus, &createdAt, &updatedAt,
	)
	if err != nil {
		return bonus.Person{}, err
	}

	p.Role = bonus.Role(role)
	if err := json.Unmarshal([]byte(revenueJSON), &p.Revenue); err != nil {
		return bonus.Person{}, fmt.Errorf("person %s: failed to decode revenue: %w", p.ID, err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return p, nil
}

// =============================================================================
// PARAMETER STORE (bonus.ParameterStore interface)
// =============================================================================

// GetParameters returns the saved parameters, or bonus.DefaultParameters()
// if none were saved yet.
func (s *Store) GetParameters(ctx context.Context) (bonus.Parameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var params bonus.Parameters
	var coefficientsJSON, dmMode, otherMode, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT coefficients_json, threshold_90, threshold_100, dm_mode, other_mode,
		       cp_subsidy, sales_subsidy, split_payout, updated_at
		FROM parameters WHERE id = 1
	`).Scan(
		&coefficientsJSON, &params.Threshold90, &params.Threshold100, &dmMode, &otherMode,
		&params.CPSubsidy, &params.SalesSubsidy, &params.SplitPayout, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return bonus.DefaultParameters(), nil
	}
	if err != nil {
		return bonus.Parameters{}, err
	}

	var coefficients [bonus.Periods]decimal.Decimal
	if err := json.Unmarshal([]byte(coefficientsJSON), &coefficients); err != nil {
		return bonus.Parameters{}, fmt.Errorf("failed to decode coefficients: %w", err)
	}
	params.Coefficients = coefficients
	params.DMMode = bonus.StackingMode(dmMode)
	params.OtherMode = bonus.StackingMode(otherMode)
	params.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return params, nil
}

// SaveParameters validates and upserts the parameter set.
func (s *Store) SaveParameters(ctx context.Context, params bonus.Parameters) error {
	if err := params.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coefficientsJSON, err := json.Marshal(params.Coefficients)
	if err != nil {
		return fmt.Errorf("failed to encode coefficients: %w", err)
	}

	query := `
		INSERT INTO parameters
		(id, coefficients_json, threshold_90, threshold_100, dm_mode, other_mode,
		 cp_subsidy, sales_subsidy, split_payout, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			coefficients_json = excluded.coefficients_json,
			threshold_90 = excluded.threshold_90,
			threshold_100 = excluded.threshold_100,
			dm_mode = excluded.dm_mode,
			other_mode = excluded.other_mode,
			cp_subsidy = excluded.cp_subsidy,
			sales_subsidy = excluded.sales_subsidy,
			split_payout = excluded.split_payout,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		string(coefficientsJSON), params.Threshold90, params.Threshold100,
		string(params.DMMode), string(params.OtherMode),
		params.CPSubsidy, params.SalesSubsidy, params.SplitPayout,
		s.now().Format(time.RFC3339Nano),
	)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"persons", "parameters"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
