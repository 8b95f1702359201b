// Package postgres implements storage.Store on PostgreSQL with pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rxtech-lab/argo-signals/internal/logger"
	"github.com/rxtech-lab/argo-signals/internal/storage"
	"github.com/rxtech-lab/argo-signals/internal/storage/postgres/migrations"
	argoerrors "github.com/rxtech-lab/argo-signals/pkg/errors"
	"go.uber.org/zap"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, argoerrors.Wrap(argoerrors.ErrCodeInvalidConfiguration, "parse postgres dsn", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, argoerrors.Wrap(argoerrors.ErrCodeStorageFailed, "connect to postgres", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, argoerrors.Wrap(argoerrors.ErrCodeStorageFailed, "ping postgres", err)
	}

	return &Pool{Pool: pool}, nil
}

// Store is the pgx backed storage.Store.
type Store struct {
	pool   *Pool
	logger *logger.Logger
}

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// NewStore creates a store over an open pool.
func NewStore(pool *Pool, log *logger.Logger) *Store {
	return &Store{pool: pool, logger: log.Named("postgres")}
}

// Open connects to dsn and returns a store.
func Open(ctx context.Context, dsn string, log *logger.Logger) (*Store, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}

	return NewStore(pool, log), nil
}

// Migrate applies every embedded migration in file name order.
// Migrations only use IF NOT EXISTS statements, so reapplying them is safe.
func (s *Store) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return argoerrors.Wrap(argoerrors.ErrCodeMigrateFailed, "list migrations", err)
	}

	sort.Strings(files)

	for _, name := range files {
		content, err := migrations.FS.ReadFile(name)
		if err != nil {
			return argoerrors.Wrapf(argoerrors.ErrCodeMigrateFailed, err, "read migration %s", name)
		}

		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			return argoerrors.Wrapf(argoerrors.ErrCodeMigrateFailed, err, "apply migration %s", name)
		}

		s.logger.Debug("applied migration", zap.String("file", name))
	}

	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()

	return nil
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}

	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func execOne(ctx context.Context, pool *Pool, op, query string, args ...any) error {
	tag, err := pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}
