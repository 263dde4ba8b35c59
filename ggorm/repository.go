// Package ggorm provides GORM-backed persistence for resources and audit
// events. See the resource and audit packages for the contracts it
// implements.
package ggorm

import (
	"context"
	"errors"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jgarte/gn-proxy/access"
	"github.com/jgarte/gn-proxy/audit"
	"github.com/jgarte/gn-proxy/resource"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&gormResource{}, &gormAuditEvent{})
}

// Ping reports whether the database is reachable. Used by health checks.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ---- resource.Store ----

func (r *Repository) Get(ctx context.Context, id string) (*resource.Resource, error) {
	var gr gormResource
	if err := r.db.WithContext(ctx).First(&gr, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, access.Errf(access.ErrResourceNotFound, "resource %q not found", id)
		}
		return nil, err
	}
	return toCoreResource(&gr)
}

// CreateIfAbsent inserts the record with conflict-do-nothing semantics, so
// a second provisioning call with the same id leaves the first record
// untouched.
func (r *Repository) CreateIfAbsent(ctx context.Context, res *resource.Resource) (bool, error) {
	gr, err := fromCoreResource(res)
	if err != nil {
		return false, err
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(gr)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// AtomicUpdate runs the mutator inside a transaction holding a row lock on
// the record, so concurrent grant/revoke calls serialize instead of losing
// updates.
func (r *Repository) AtomicUpdate(ctx context.Context, id string, mutate resource.Mutator) (*resource.Resource, error) {
	var updated *resource.Resource

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var gr gormResource
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&gr, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return access.Errf(access.ErrResourceNotFound, "resource %q not found", id)
			}
			return err
		}

		res, err := toCoreResource(&gr)
		if err != nil {
			return err
		}
		if err := mutate(res); err != nil {
			return err
		}

		out, err := fromCoreResource(res)
		if err != nil {
			return err
		}
		out.CreatedAt = gr.CreatedAt
		if err := tx.Save(out).Error; err != nil {
			return err
		}
		updated = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ---- audit.Store ----

func (r *Repository) SaveEvent(ctx context.Context, event *audit.Event) error {
	ge, err := fromCoreAuditEvent(event)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(ge).Error
}

func (r *Repository) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	q := r.db.WithContext(ctx).Model(&gormAuditEvent{}).Order("created_at")
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.ResourceID != "" {
		q = q.Where("resource_id = ?", filter.ResourceID)
	}
	if len(filter.Types) > 0 {
		q = q.Where("type IN ?", filter.Types)
	}
	if !filter.StartTime.IsZero() {
		q = q.Where("created_at >= ?", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		q = q.Where("created_at <= ?", filter.EndTime)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []gormAuditEvent
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]audit.Event, 0, len(rows))
	for i := range rows {
		e, err := toCoreAuditEvent(&rows[i])
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, nil
}

// Compile-time interface checks
var (
	_ resource.Store = (*Repository)(nil)
	_ audit.Store    = (*Repository)(nil)
)
