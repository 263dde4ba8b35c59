// Package gnproxy is a capability-based authorization proxy for GeneNetwork
// dataset queries.
//
// The proxy stands between callers and a set of parameterized relational
// queries, exposing each operation only after checking a per-resource,
// per-user privilege level. Every resource declares a type; a type's action
// set arranges its operations in strictly ordered branches, and an integer
// mask per branch marks the highest action a principal may invoke.
//
// # Subpackages
//
//   - access: actions, branches, action sets, the type registry, errors
//   - resource: the persisted resource entity and store contract
//   - dispatch: privilege evaluation and action dispatch
//   - backend: bound-parameter query execution
//   - dataset: the GeneNetwork resource types
//   - ggorm: GORM-backed resource and audit stores
//   - audit: the authorization decision trail
//   - api: the HTTP binding
//
// # Quick Start
//
//	repo, err := ggorm.Open("sqlite", "gnproxy.db", nil)
//	registry := access.NewRegistry()
//	dataset.RegisterTypes(registry)
//	d := gnproxy.NewDefaultDispatcher(registry, repo, backendDB)
//	actions, err := d.Available(ctx, "publish-2", "anon")
package gnproxy

import (
	"gorm.io/gorm"

	"github.com/jgarte/gn-proxy/access"
	"github.com/jgarte/gn-proxy/audit"
	"github.com/jgarte/gn-proxy/backend"
	"github.com/jgarte/gn-proxy/dispatch"
	"github.com/jgarte/gn-proxy/ggorm"
)

// Params carries named string parameters into action handlers.
type Params = access.Params

// NewDefaultDispatcher wires a dispatcher over a GORM repository, using the
// repository for both resource storage and the audit trail, and the given
// connection for dataset queries.
func NewDefaultDispatcher(registry *access.Registry, repo *ggorm.Repository, backendDB *gorm.DB, opts ...dispatch.Option) *dispatch.Dispatcher {
	base := []dispatch.Option{
		dispatch.WithAudit(audit.NewLogger(repo)),
	}
	if backendDB != nil {
		base = append(base, dispatch.WithBackend(backend.NewExecutor(backendDB)))
	}
	return dispatch.New(registry, repo, append(base, opts...)...)
}
