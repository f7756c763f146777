package provider

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/sandrolain/searchexpr/pkg/types"
)

// SQLite is a provider backed by a SQLite records table. Rows are scanned
// one per pull and filtered with the same query language as Memory.
type SQLite struct {
	id string
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(id, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	s := &SQLite{id: id, db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		value_json TEXT,
		score INTEGER NOT NULL DEFAULT 0,
		fields_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_records_label ON records(label);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}
	return nil
}

// ID implements Provider.
func (s *SQLite) ID() string { return s.id }

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Insert stores records, replacing rows with the same id.
func (s *SQLite) Insert(ctx context.Context, records ...*types.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, label, description, value_json, score, fields_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			description = excluded.description,
			value_json = excluded.value_json,
			score = excluded.score,
			fields_json = excluded.fields_json`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, r := range records {
		value, err := json.Marshal(r.Value)
		if err != nil {
			return errors.Wrapf(err, "failed to encode value of %s", r.ID)
		}
		var fields []byte
		if r.Fields.Len() > 0 {
			if fields, err = json.Marshal(r.Fields); err != nil {
				return errors.Wrapf(err, "failed to encode fields of %s", r.ID)
			}
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Label, r.Description, string(value), r.Score, nullString(fields)); err != nil {
			return errors.Wrapf(err, "failed to insert %s", r.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit records")
}

// Count returns the number of stored rows.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count records")
	}
	return n, nil
}

// Query implements Provider. The statement runs at the first pull and the
// rows are closed as soon as the consumer stops.
func (s *SQLite) Query(ctx context.Context, text string, _ types.ExecFlags) types.Sequence {
	return func(yield func(types.Element, error) bool) {
		f := ParseFilter(text)
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, label, description, value_json, score, fields_json
			FROM records ORDER BY seq`)
		if err != nil {
			yield(types.Pending, errors.Wrap(err, "failed to query records"))
			return
		}
		defer rows.Close()

		for rows.Next() {
			r, err := scanRecord(rows)
			if err != nil {
				yield(types.Pending, err)
				return
			}
			if !f.Match(r) {
				continue
			}
			if !yield(types.Value(r), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(types.Pending, errors.Wrap(err, "failed to read records"))
		}
	}
}

func scanRecord(rows *sql.Rows) (*types.Record, error) {
	var (
		r      types.Record
		value  sql.NullString
		fields sql.NullString
	)
	if err := rows.Scan(&r.ID, &r.Label, &r.Description, &value, &r.Score, &fields); err != nil {
		return nil, errors.Wrap(err, "failed to scan record")
	}
	if value.Valid && value.String != "" {
		if err := json.Unmarshal([]byte(value.String), &r.Value); err != nil {
			return nil, errors.Wrapf(err, "failed to decode value of %s", r.ID)
		}
	}
	if fields.Valid && fields.String != "" {
		r.Fields = types.NewFields()
		if err := json.Unmarshal([]byte(fields.String), r.Fields); err != nil {
			return nil, errors.Wrapf(err, "failed to decode fields of %s", r.ID)
		}
	}
	return &r, nil
}

func nullString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
