// Package dispatch ties resource lookup, privilege evaluation, and handler
// invocation together.
//
// The dispatcher is stateless over its inputs plus the read-only type
// registry and the externally synchronized store, so any number of callers
// may invoke it concurrently. It holds no lock while blocked on the store
// or the backend.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jgarte/gn-proxy/access"
	"github.com/jgarte/gn-proxy/audit"
	"github.com/jgarte/gn-proxy/backend"
	"github.com/jgarte/gn-proxy/resource"
)

// Dispatcher resolves resource → type → branch → action, authorizes the
// caller, and invokes the action handler.
type Dispatcher struct {
	registry *access.Registry
	store    resource.Store
	backend  backend.Querier
	audit    *audit.Logger
	log      *zap.Logger
	timeout  time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBackend sets the query executor handed to action handlers.
func WithBackend(qx backend.Querier) Option {
	return func(d *Dispatcher) {
		d.backend = qx
	}
}

// WithAudit sets the audit logger for decision records.
func WithAudit(l *audit.Logger) Option {
	return func(d *Dispatcher) {
		d.audit = l
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// WithTimeout bounds handler invocation. Zero disables the dispatcher-side
// deadline; a caller-supplied context deadline still applies.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = t
	}
}

// New creates a Dispatcher over the given registry and store.
func New(registry *access.Registry, store resource.Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		store:    store,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.backend == nil {
		// Running without a query backend is a supported mode; handlers
		// that query must fail cleanly rather than dereference nil.
		d.backend = backend.Disabled()
	}
	return d
}

// Available lists, for every branch of the resource's action set, the
// action names the user may invoke.
func (d *Dispatcher) Available(ctx context.Context, resourceID, userID string) (map[string][]string, error) {
	res, err := d.store.Get(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	set, err := d.registry.Lookup(res.Type)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(set.Branches))
	for name := range set.Branches {
		names, err := Available(set, res, name, userID)
		if err != nil {
			return nil, err
		}
		out[name] = names
	}
	return out, nil
}

// Execute authorizes and runs one action. A denied call never reaches the
// handler; a handler failure is wrapped once and never retried.
func (d *Dispatcher) Execute(ctx context.Context, resourceID, userID, branch, action string, params access.Params) (any, error) {
	res, err := d.store.Get(ctx, resourceID)
	if err != nil {
		d.denied(ctx, userID, resourceID, branch, action, err)
		return nil, err
	}

	// The registry lookup is defensive; provisioning rejects unknown types.
	set, err := d.registry.Lookup(res.Type)
	if err != nil {
		d.denied(ctx, userID, resourceID, branch, action, err)
		return nil, err
	}

	b, ok := set.Branch(branch)
	if !ok {
		err := access.Errf(access.ErrBranchNotFound, "branch %q not found on type %q", branch, res.Type)
		d.denied(ctx, userID, resourceID, branch, action, err)
		return nil, err
	}

	act, index, ok := b.Lookup(action)
	if !ok {
		err := access.Errf(access.ErrActionNotFound, "action %q not found on branch %q", action, branch)
		d.denied(ctx, userID, resourceID, branch, action, err)
		return nil, err
	}

	permitted, err := PermittedLevel(set, res, branch, userID)
	if err != nil {
		d.denied(ctx, userID, resourceID, branch, action, err)
		return nil, err
	}
	if index > permitted {
		err := access.Errf(access.ErrPermissionDenied,
			"user %q permitted level %d on branch %q, action %q requires %d", userID, permitted, branch, action, index)
		d.denied(ctx, userID, resourceID, branch, action, err)
		return nil, err
	}

	// Undeclared extra parameters are ignored rather than rejected.
	for _, name := range act.RequiredParams {
		if _, ok := params[name]; !ok {
			return nil, access.MissingParameter(name)
		}
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result, err := act.Handler(ctx, d.backend, res.Data, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			d.record(ctx, &audit.Event{
				Type: audit.EventActionFailed, ActorID: userID, ResourceID: resourceID,
				Branch: branch, Action: action, Status: "failure", Message: "timed out",
			})
			return nil, access.Timeout(err)
		}
		d.record(ctx, &audit.Event{
			Type: audit.EventActionFailed, ActorID: userID, ResourceID: resourceID,
			Branch: branch, Action: action, Status: "failure", Message: err.Error(),
		})
		return nil, access.HandlerError(err)
	}

	d.record(ctx, &audit.Event{
		Type: audit.EventAccessGranted, ActorID: userID, ResourceID: resourceID,
		Branch: branch, Action: action, Status: "success",
	})
	return result, nil
}

// AddResource validates and persists a resource. Provisioning is
// idempotent: when the id already exists the stored record is left
// untouched and created is false. An empty id is filled with a UUID.
func (d *Dispatcher) AddResource(ctx context.Context, res *resource.Resource) (bool, error) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	set, err := d.registry.Lookup(res.Type)
	if err != nil {
		return false, err
	}
	if err := validateMasks(set, res); err != nil {
		return false, err
	}

	created, err := d.store.CreateIfAbsent(ctx, res)
	if err != nil {
		return false, err
	}
	if created {
		d.record(ctx, &audit.Event{
			Type: audit.EventResourceCreated, ActorID: res.OwnerID, ResourceID: res.ID, Status: "success",
			Metadata: map[string]any{"type": res.Type},
		})
		d.log.Info("resource created",
			zap.String("resource", res.ID),
			zap.String("type", res.Type),
			zap.String("owner", res.OwnerID),
		)
	}
	return created, nil
}

// Grant sets a user's privilege level on a branch of the resource. The
// actor must hold admin privilege on the resource (see authorizeAdmin).
func (d *Dispatcher) Grant(ctx context.Context, resourceID, actorID, userID, branch string, level int) error {
	return d.mutateMask(ctx, resourceID, actorID, branch, func(set *access.ActionSet, res *resource.Resource) error {
		b, ok := set.Branch(branch)
		if !ok {
			return access.Errf(access.ErrBranchNotFound, "branch %q not found on type %q", branch, res.Type)
		}
		if level < 0 || level > b.Top() {
			return access.Invalidf("level %d out of range for branch %q", level, branch)
		}
		res.Grant(userID, branch, level)
		return nil
	}, &audit.Event{
		Type: audit.EventMaskGranted, ActorID: actorID, ResourceID: resourceID, Branch: branch, Status: "success",
		Metadata: map[string]any{"user": userID, "level": level},
	})
}

// Revoke removes a user's override on a branch, restoring the default mask.
func (d *Dispatcher) Revoke(ctx context.Context, resourceID, actorID, userID, branch string) error {
	return d.mutateMask(ctx, resourceID, actorID, branch, func(set *access.ActionSet, res *resource.Resource) error {
		if _, ok := set.Branch(branch); !ok {
			return access.Errf(access.ErrBranchNotFound, "branch %q not found on type %q", branch, res.Type)
		}
		res.Revoke(userID, branch)
		return nil
	}, &audit.Event{
		Type: audit.EventMaskRevoked, ActorID: actorID, ResourceID: resourceID, Branch: branch, Status: "success",
		Metadata: map[string]any{"user": userID},
	})
}

// AdminBranch is the conventional branch gating mask mutation.
const AdminBranch = "admin"

func (d *Dispatcher) mutateMask(ctx context.Context, resourceID, actorID, branch string, apply func(*access.ActionSet, *resource.Resource) error, event *audit.Event) error {
	res, err := d.store.Get(ctx, resourceID)
	if err != nil {
		return err
	}
	set, err := d.registry.Lookup(res.Type)
	if err != nil {
		return err
	}
	if err := authorizeAdmin(set, res, actorID); err != nil {
		d.denied(ctx, actorID, resourceID, branch, "", err)
		return err
	}

	_, err = d.store.AtomicUpdate(ctx, resourceID, func(stored *resource.Resource) error {
		// The snapshot check above is only a fast path; the actor's admin
		// level may have been revoked since. Re-check against the record
		// the store holds locked.
		if err := authorizeAdmin(set, stored, actorID); err != nil {
			return err
		}
		return apply(set, stored)
	})
	if err != nil {
		if errors.Is(err, access.ErrPermissionDenied) {
			d.denied(ctx, actorID, resourceID, branch, "", err)
		}
		return err
	}
	d.record(ctx, event)
	return nil
}

// authorizeAdmin requires the actor to hold at least level 1 on the admin
// branch. Types without an admin branch restrict mask mutation to the
// owner.
func authorizeAdmin(set *access.ActionSet, res *resource.Resource, actorID string) error {
	if _, ok := set.Branch(AdminBranch); !ok {
		if set.OwnerAccess && actorID != "" && actorID == res.OwnerID {
			return nil
		}
		return access.Errf(access.ErrPermissionDenied, "user %q may not administer resource %q", actorID, res.ID)
	}
	level, err := PermittedLevel(set, res, AdminBranch, actorID)
	if err != nil {
		return err
	}
	if level < 1 {
		return access.Errf(access.ErrPermissionDenied, "user %q may not administer resource %q", actorID, res.ID)
	}
	return nil
}

func validateMasks(set *access.ActionSet, res *resource.Resource) error {
	check := func(m resource.Mask) error {
		for branch, level := range m {
			b, ok := set.Branch(branch)
			if !ok {
				return access.Invalidf("mask references unknown branch %q on type %q", branch, res.Type)
			}
			if level < 0 || level > b.Top() {
				return access.Invalidf("mask level %d out of range for branch %q", level, branch)
			}
		}
		return nil
	}
	if err := check(res.DefaultMask); err != nil {
		return err
	}
	for _, m := range res.UserMasks {
		if err := check(m); err != nil {
			return err
		}
	}
	return nil
}

// denied records a refused call with its true reason. The API layer keeps
// the external payload uniform; this trail is where the distinction lives.
func (d *Dispatcher) denied(ctx context.Context, userID, resourceID, branch, action string, cause error) {
	d.log.Debug("access refused",
		zap.String("user", userID),
		zap.String("resource", resourceID),
		zap.String("branch", branch),
		zap.String("action", action),
		zap.Error(cause),
	)
	d.record(ctx, &audit.Event{
		Type: audit.EventAccessDenied, ActorID: userID, ResourceID: resourceID,
		Branch: branch, Action: action, Status: "denied", Message: cause.Error(),
	})
}

func (d *Dispatcher) record(ctx context.Context, event *audit.Event) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Log(ctx, event); err != nil {
		d.log.Warn("audit write failed", zap.Error(err))
	}
}
