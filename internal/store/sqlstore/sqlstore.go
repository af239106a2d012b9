// Package sqlstore implements store.Store on top of a SQLite statement table
// as written by ftmq. The database is opened read-only.
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/morikuni/failure/v2"
	"github.com/takatori/ftmq-api/internal/errors"
	"github.com/takatori/ftmq-api/internal/model"
	"github.com/takatori/ftmq-api/internal/store"
	_ "modernc.org/sqlite"
)

// DDL creates the tables the store reads from. Each row of statement is one
// property value of one entity; rows sharing a canonical_id form a merged
// entity. The prop "id" marks the existence of an entity and carries no value.
const DDL = `
CREATE TABLE IF NOT EXISTS statement (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id TEXT NOT NULL,
	canonical_id TEXT NOT NULL,
	schema TEXT NOT NULL,
	dataset TEXT NOT NULL,
	prop TEXT NOT NULL,
	prop_type TEXT NOT NULL,
	value TEXT NOT NULL,
	first_seen TEXT,
	last_seen TEXT
);
CREATE INDEX IF NOT EXISTS statement_canonical_id ON statement (canonical_id);
CREATE INDEX IF NOT EXISTS statement_entity_id ON statement (entity_id);
CREATE INDEX IF NOT EXISTS statement_prop_value ON statement (prop, value);
CREATE INDEX IF NOT EXISTS statement_dataset ON statement (dataset);
CREATE TABLE IF NOT EXISTS linker (
	entity_id TEXT PRIMARY KEY,
	canonical_id TEXT NOT NULL
);
`

const idProp = "id"

type Store struct {
	db    *sql.DB
	model *model.Model
	sq    sq.StatementBuilderType
	scope string
	root  bool
}

var _ store.Store = (*Store)(nil)

// Open opens the SQLite database at uri read-only. uri is a plain path,
// optionally prefixed with sqlite:// or file:.
func Open(ctx context.Context, uri string, m *model.Model) (*Store, error) {
	path := strings.TrimPrefix(strings.TrimPrefix(uri, "sqlite://"), "file:")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, failure.Translate(
			err,
			errors.ErrInternal,
			failure.Message("failed to open store"),
			failure.Context{"uri": uri},
		)
	}
	s := New(db, m)
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, failure.Wrap(err, failure.Context{"uri": uri})
	}
	return s, nil
}

// New wraps an open database. Closing the store closes db.
func New(db *sql.DB, m *model.Model) *Store {
	return &Store{
		db:    db,
		model: m,
		sq:    sq.StatementBuilder.PlaceholderFormat(sq.Question),
		root:  true,
	}
}

func (s *Store) Scope(dataset string) store.Store {
	scoped := *s
	scoped.scope = dataset
	scoped.root = false
	return &scoped
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(err, "ping")
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('statement', 'linker')").Scan(&n)
	if err != nil {
		return unavailable(err, "ping")
	}
	if n != 2 {
		return failure.New(
			errors.ErrUnavailable,
			failure.Message("entity store is not initialized"),
		)
	}
	return nil
}

// Close closes the database. Scoped views share the database of their
// parent and do not close it.
func (s *Store) Close() error {
	if !s.root {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Datasets(ctx context.Context) ([]string, error) {
	sel := s.sq.Select("DISTINCT dataset").From("statement").OrderBy("dataset")
	if s.scope != "" {
		sel = sel.Where(sq.Eq{"dataset": s.scope})
	}
	var names []string
	err := s.each(ctx, "datasets", sel, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	return names, err
}

func (s *Store) Canonical(ctx context.Context, id string) (string, error) {
	lookups := []sq.SelectBuilder{
		s.sq.Select("canonical_id").From("linker").Where(sq.Eq{"entity_id": id}),
		s.sq.Select("canonical_id").From("statement").Where(sq.Eq{"entity_id": id}).Limit(1),
	}
	for _, sel := range lookups {
		var canonical string
		err := s.row(ctx, "canonical", sel, &canonical)
		if stderrors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", err
		}
		return canonical, nil
	}
	return id, nil
}

func (s *Store) Entity(ctx context.Context, id string) (*model.Entity, error) {
	entities, err := s.load(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	e, ok := entities[id]
	if !ok {
		return nil, failure.New(
			errors.ErrNotFound,
			failure.Message(fmt.Sprintf("Entity `%s` not found.", id)),
			failure.Context{"id": id, "scope": s.scope},
		)
	}
	return e, nil
}

// scoped restricts sel to the dataset of the store, if any. column is the
// dataset column as visible in sel.
func (s *Store) scoped(sel sq.SelectBuilder, column string) sq.SelectBuilder {
	if s.scope == "" {
		return sel
	}
	return sel.Where(sq.Eq{column: s.scope})
}

// row runs sel and scans the single result row into dest. sql.ErrNoRows is
// returned as is.
func (s *Store) row(ctx context.Context, op string, sel sq.SelectBuilder, dest ...any) error {
	query, args, err := sel.ToSql()
	if err != nil {
		return buildFailed(err, op)
	}
	err = s.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	if err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return unavailable(err, op)
	}
	return err
}

// each runs sel and calls f for every row.
func (s *Store) each(ctx context.Context, op string, sel sq.SelectBuilder, f func(*sql.Rows) error) error {
	query, args, err := sel.ToSql()
	if err != nil {
		return buildFailed(err, op)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return unavailable(err, op)
	}
	defer rows.Close()
	for rows.Next() {
		if err := f(rows); err != nil {
			return unavailable(err, op)
		}
	}
	if err := rows.Err(); err != nil {
		return unavailable(err, op)
	}
	return nil
}

func unavailable(err error, op string) error {
	return failure.Translate(
		err,
		errors.ErrUnavailable,
		failure.Message("entity store unavailable"),
		failure.Context{"op": op},
	)
}

func buildFailed(err error, op string) error {
	return failure.Translate(
		err,
		errors.ErrInternal,
		failure.Message("failed to build store query"),
		failure.Context{"op": op},
	)
}
