package pagestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagesmith/api/schemas"
)

// PgxIface is the subset of pgxpool.Pool the repository needs. Declared so
// tests can substitute pgxmock.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists page objects as flat rows with the element list
// serialized as JSONB. It implements schemas.PageObjectRepository.
type PostgresRepository struct {
	db  PgxIface
	log *zap.Logger
}

var _ schemas.PageObjectRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wraps a pgx pool (or mock).
func NewPostgresRepository(db PgxIface, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, log: logger.Named("pom_repository")}
}

// EnsureSchema creates the backing table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS page_objects (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			url          TEXT NOT NULL,
			url_pattern  TEXT NOT NULL,
			elements     JSONB NOT NULL DEFAULT '[]',
			version      INTEGER NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		);`
	if _, err := r.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure page_objects schema: %w", err)
	}
	return nil
}

// Save upserts one page object keyed by id.
func (r *PostgresRepository) Save(ctx context.Context, pom *schemas.PageObject) error {
	elementsJSON, err := json.Marshal(pom.Elements)
	if err != nil {
		return fmt.Errorf("failed to marshal elements for POM %s: %w", pom.ID, err)
	}

	const query = `
		INSERT INTO page_objects (id, name, url, url_pattern, elements, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			url_pattern = EXCLUDED.url_pattern,
			elements = EXCLUDED.elements,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at;`

	if _, err := r.db.Exec(ctx, query,
		pom.ID, pom.Name, pom.URL, pom.URLPattern, elementsJSON, pom.Version, pom.LastUpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert POM %s: %w", pom.ID, err)
	}
	return nil
}

// LoadAll reads every stored page object. Rows whose element payload fails to
// decode are skipped with a warning rather than failing startup.
func (r *PostgresRepository) LoadAll(ctx context.Context) ([]*schemas.PageObject, error) {
	const query = `SELECT id, name, url, url_pattern, elements, version, updated_at FROM page_objects`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query page objects: %w", err)
	}
	defer rows.Close()

	var poms []*schemas.PageObject
	for rows.Next() {
		var pom schemas.PageObject
		var elementsJSON []byte
		if err := rows.Scan(&pom.ID, &pom.Name, &pom.URL, &pom.URLPattern,
			&elementsJSON, &pom.Version, &pom.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page object row: %w", err)
		}
		if err := json.Unmarshal(elementsJSON, &pom.Elements); err != nil {
			r.log.Warn("Skipping POM with undecodable element payload",
				zap.String("pom_id", pom.ID), zap.Error(err))
			continue
		}
		poms = append(poms, &pom)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating page object rows: %w", err)
	}
	return poms, nil
}
