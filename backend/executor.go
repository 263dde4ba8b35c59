// Package backend provides query execution against the data backend.
//
// Action handlers never talk to a database driver directly; they receive a
// Querier and submit a query template plus positional arguments. Argument
// substitution is always performed by bound-parameter binding — handlers must
// never format caller- or resource-supplied values into query text.
//
// Row conversion preserves backend row order and maps SQL NULL to nil, which
// serializes as JSON null at the API boundary.
package backend

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotConfigured is returned by the disabled querier when no query
// backend has been configured.
var ErrNotConfigured = errors.New("backend: query backend not configured")

// Row is a single result row: a fixed-arity tuple of nullable scalar values.
// A NULL column is represented as nil.
type Row []any

// Querier executes a parameterized query and returns the matching rows.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// Executor implements Querier on top of a GORM connection. It owns no
// connection lifecycle beyond what the *gorm.DB it wraps provides.
type Executor struct {
	db *gorm.DB
}

// NewExecutor creates an Executor over an open GORM connection.
func NewExecutor(db *gorm.DB) *Executor {
	return &Executor{db: db}
}

// Query runs the template with bound positional arguments and returns all
// rows in backend order.
func (e *Executor) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := e.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("backend: query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("backend: reading columns failed: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(cols))
		scan := make([]any, len(cols))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("backend: scanning row failed: %w", err)
		}
		for i, v := range values {
			// Drivers hand back []byte for text columns; normalize to
			// string so results serialize cleanly.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, Row(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("backend: row iteration failed: %w", err)
	}

	return result, nil
}

// Ping reports whether the underlying connection is reachable. Used by
// health checks.
func (e *Executor) Ping(ctx context.Context) error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Disabled returns a Querier that fails every query with ErrNotConfigured.
// The dispatcher falls back to it when built without a backend, so action
// handlers that query surface an error instead of dereferencing nil.
func Disabled() Querier { return disabledQuerier{} }

type disabledQuerier struct{}

func (disabledQuerier) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return nil, ErrNotConfigured
}

// Compile-time interface checks
var (
	_ Querier = (*Executor)(nil)
	_ Querier = disabledQuerier{}
)
