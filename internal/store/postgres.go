package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

// Pool abstracts the pgxpool methods the store uses, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgresFromPool wraps an existing pool; used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
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
	deleted_at   TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contacts_segment ON contacts(segment) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS activities (
	id         TEXT PRIMARY KEY,
	contact_id TEXT NOT NULL REFERENCES contacts(id),
	kind       TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	metadata   JSONB,
	created_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_activities_contact_kind ON activities(contact_id, kind, created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateContact(ctx context.Context, c model.Contact) (*model.Contact, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Stage == "" {
		c.Stage = model.StageNew
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO contacts (id, name, company, email, phone, website, linkedin_url, headline, segment, stage, source, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.Name, c.Company, c.Email, c.Phone, c.Website, c.LinkedInURL, c.Headline, c.Segment, string(c.Stage), c.Source, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert contact")
	}
	return &c, nil
}

const contactColumns = `id, name, company, email, phone, website, linkedin_url, headline, segment, stage, source, deleted_at, created_at, updated_at`

func scanContact(row pgx.Row) (*model.Contact, error) {
	var c model.Contact
	var stage string
	err := row.Scan(&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone, &c.Website, &c.LinkedInURL,
		&c.Headline, &c.Segment, &stage, &c.Source, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Stage = model.Stage(stage)
	return &c, nil
}

func (s *PostgresStore) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND deleted_at IS NULL`, id)
	c, err := scanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "contact %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get contact %s", id)
	}
	return c, nil
}

func (s *PostgresStore) FillContactFields(ctx context.Context, id string, upd model.ContactUpdate) error {
	if upd.Empty() {
		return nil
	}

	// COALESCE-style fill: only empty columns take the new value.
	set := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}
	idx := 2
	add := func(col string, val *string) {
		if val == nil {
			return
		}
		set = append(set, fmt.Sprintf("%s = CASE WHEN %s = '' THEN $%d ELSE %s END", col, col, idx, col))
		args = append(args, *val)
		idx++
	}
	add("email", upd.Email)
	add("phone", upd.Phone)
	add("website", upd.Website)

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE contacts SET %s WHERE id = $%d AND deleted_at IS NULL`, strings.Join(set, ", "), idx)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: fill contact %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "contact %s", id)
	}
	return nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, f ContactFilter) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE deleted_at IS NULL`
	args := []any{}
	idx := 1

	if f.Segment != "" {
		query += fmt.Sprintf(` AND segment = $%d`, idx)
		args = append(args, f.Segment)
		idx++
	}
	if f.MissingEmail {
		query += ` AND email = ''`
	}
	if f.HasWebsite {
		query += ` AND website <> ''`
	}
	query += ` ORDER BY created_at`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, idx)
		args = append(args, f.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts")
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list contacts rows")
}

func (s *PostgresStore) DedupKeys(ctx context.Context) ([]DedupKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT linkedin_url, name, company FROM contacts WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dedup keys")
	}
	defer rows.Close()

	var out []DedupKey
	for rows.Next() {
		var k DedupKey
		if err := rows.Scan(&k.LinkedInURL, &k.Name, &k.Company); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dedup key")
		}
		out = append(out, k)
	}
	return out, eris.Wrap(rows.Err(), "postgres: dedup keys rows")
}

func (s *PostgresStore) CreateActivity(ctx context.Context, a model.Activity) (*model.Activity, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()

	var metaJSON []byte
	if a.Metadata != nil {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal activity metadata")
		}
		metaJSON = b
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO activities (id, contact_id, kind, subject, body, metadata, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ContactID, string(a.Kind), a.Subject, a.Body, metaJSON, a.CreatedBy, a.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert activity")
	}
	return &a, nil
}

func (s *PostgresStore) UpdateActivity(ctx context.Context, id, subject, body string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE activities SET subject = $1, body = $2 WHERE id = $3`,
		subject, body, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update activity %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "activity %s", id)
	}
	return nil
}

func (s *PostgresStore) LatestActivity(ctx context.Context, contactID string, kind model.ActivityKind) (*model.Activity, error) {
	var a model.Activity
	var kindStr string
	var metaJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, contact_id, kind, subject, body, metadata, created_by, created_at
		 FROM activities WHERE contact_id = $1 AND kind = $2
		 ORDER BY created_at DESC LIMIT 1`,
		contactID, string(kind),
	).Scan(&a.ID, &a.ContactID, &kindStr, &a.Subject, &a.Body, &metaJSON, &a.CreatedBy, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest %s activity for %s", kind, contactID)
	}

	a.Kind = model.ActivityKind(kindStr)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &a.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal activity metadata")
		}
	}
	return &a, nil
}
