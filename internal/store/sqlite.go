package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadflow/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for
// local development; production runs against Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	company      TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	linkedin_url TEXT NOT NULL DEFAULT '',
	headline     TEXT NOT NULL DEFAULT '',
	segment      TEXT NOT NULL DEFAULT '',
	stage        TEXT NOT NULL DEFAULT 'new',
	source       TEXT NOT NULL DEFAULT '',
	deleted_at   DATETIME,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_segment ON contacts(segment);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);

CREATE TABLE IF NOT EXISTS activities (
	id         TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL REFERENCES contacts(id),
	kind       TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	metadata   TEXT,
	created_by TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activities_contact_kind ON activities(contact_id, kind, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateContact(ctx context.Context, c model.Contact) (*model.Contact, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Stage == "" {
		c.Stage = model.StageNew
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, name, company, email, phone, website, linkedin_url, headline, segment, stage, source, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Company, c.Email, c.Phone, c.Website, c.LinkedInURL, c.Headline, c.Segment, string(c.Stage), c.Source, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert contact")
	}
	return &c, nil
}

func (s *SQLiteStore) scanContactRow(row interface{ Scan(...any) error }) (*model.Contact, error) {
	var c model.Contact
	var stage string
	var deleted sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone, &c.Website, &c.LinkedInURL,
		&c.Headline, &c.Segment, &stage, &c.Source, &deleted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Stage = model.Stage(stage)
	if deleted.Valid {
		c.DeletedAt = &deleted.Time
	}
	return &c, nil
}

func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ? AND deleted_at IS NULL`, id)
	c, err := s.scanContactRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "contact %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contact %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) FillContactFields(ctx context.Context, id string, upd model.ContactUpdate) error {
	if upd.Empty() {
		return nil
	}

	set := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	add := func(col string, val *string) {
		if val == nil {
			return
		}
		set = append(set, fmt.Sprintf("%s = CASE WHEN %s = '' THEN ? ELSE %s END", col, col, col))
		args = append(args, *val)
	}
	add("email", upd.Email)
	add("phone", upd.Phone)
	add("website", upd.Website)

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE contacts SET %s WHERE id = ? AND deleted_at IS NULL`, strings.Join(set, ", ")),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fill contact %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "contact %s", id)
	}
	return nil
}

func (s *SQLiteStore) ListContacts(ctx context.Context, f ContactFilter) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE deleted_at IS NULL`
	args := []any{}

	if f.Segment != "" {
		query += ` AND segment = ?`
		args = append(args, f.Segment)
	}
	if f.MissingEmail {
		query += ` AND email = ''`
	}
	if f.HasWebsite {
		query += ` AND website <> ''`
	}
	query += ` ORDER BY created_at`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		c, err := s.scanContactRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list contacts rows")
}

func (s *SQLiteStore) DedupKeys(ctx context.Context) ([]DedupKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT linkedin_url, name, company FROM contacts WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dedup keys")
	}
	defer rows.Close()

	var out []DedupKey
	for rows.Next() {
		var k DedupKey
		if err := rows.Scan(&k.LinkedInURL, &k.Name, &k.Company); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dedup key")
		}
		out = append(out, k)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: dedup keys rows")
}

func (s *SQLiteStore) CreateActivity(ctx context.Context, a model.Activity) (*model.Activity, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()

	var metaJSON any
	if a.Metadata != nil {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal activity metadata")
		}
		metaJSON = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, contact_id, kind, subject, body, metadata, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ContactID, string(a.Kind), a.Subject, a.Body, metaJSON, a.CreatedBy, a.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert activity")
	}
	return &a, nil
}

func (s *SQLiteStore) UpdateActivity(ctx context.Context, id, subject, body string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE activities SET subject = ?, body = ? WHERE id = ?`,
		subject, body, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update activity %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "activity %s", id)
	}
	return nil
}

func (s *SQLiteStore) LatestActivity(ctx context.Context, contactID string, kind model.ActivityKind) (*model.Activity, error) {
	var a model.Activity
	var kindStr string
	var metaJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, contact_id, kind, subject, body, metadata, created_by, created_at
		 FROM activities WHERE contact_id = ? AND kind = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		contactID, string(kind),
	).Scan(&a.ID, &a.ContactID, &kindStr, &a.Subject, &a.Body, &metaJSON, &a.CreatedBy, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest %s activity for %s", kind, contactID)
	}

	a.Kind = model.ActivityKind(kindStr)
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &a.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal activity metadata")
		}
	}
	return &a, nil
}
