// Package resource defines the persisted access-controlled entity and the
// store contract it lives behind.
//
// A Resource proxies one backend data object. It carries the opaque string
// parameters its type's handlers consume, a default privilege mask applied
// to any caller without an explicit override, and per-user mask overrides.
// Mask values are integer indices into the branches of the resource type's
// action set.
//
// All mutation of a resource's masks goes through Store.AtomicUpdate as a
// single read-modify-write; callers never decompose it into a get followed
// by a put, since concurrent grants and revokes on the same id must not be
// lost.
package resource

import (
	"context"
	"database/sql/driver"
	"errors"
)

// JSON is a custom type for handling JSON data in various storages.
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return errors.New("invalid type for JSON")
	}
	return nil
}

// Mask maps branch names to permitted privilege levels.
type Mask map[string]int

// Resource is a persisted access-controlled entity.
type Resource struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	OwnerID     string            `json:"owner_id"`
	Data        map[string]string `json:"data"`
	DefaultMask Mask              `json:"default_mask"`
	UserMasks   map[string]Mask   `json:"user_masks,omitempty"`
}

// MaskLevel returns the privilege level for the user on the branch: the
// user's explicit override if present, otherwise the default mask entry.
// The second return reports whether any mask entry applied.
func (r *Resource) MaskLevel(userID, branch string) (int, bool) {
	if m, ok := r.UserMasks[userID]; ok {
		if level, ok := m[branch]; ok {
			return level, true
		}
	}
	level, ok := r.DefaultMask[branch]
	return level, ok
}

// Grant sets the user's level on the branch.
func (r *Resource) Grant(userID, branch string, level int) {
	if r.UserMasks == nil {
		r.UserMasks = make(map[string]Mask)
	}
	if r.UserMasks[userID] == nil {
		r.UserMasks[userID] = make(Mask)
	}
	r.UserMasks[userID][branch] = level
}

// Revoke removes the user's override on the branch, restoring the default
// mask for them.
func (r *Resource) Revoke(userID, branch string) {
	m, ok := r.UserMasks[userID]
	if !ok {
		return
	}
	delete(m, branch)
	if len(m) == 0 {
		delete(r.UserMasks, userID)
	}
}

// Clone returns a deep copy. Stores hand out clones so callers never alias
// stored state.
func (r *Resource) Clone() *Resource {
	out := &Resource{
		ID:      r.ID,
		Type:    r.Type,
		OwnerID: r.OwnerID,
	}
	if r.Data != nil {
		out.Data = make(map[string]string, len(r.Data))
		for k, v := range r.Data {
			out.Data[k] = v
		}
	}
	if r.DefaultMask != nil {
		out.DefaultMask = make(Mask, len(r.DefaultMask))
		for k, v := range r.DefaultMask {
			out.DefaultMask[k] = v
		}
	}
	if r.UserMasks != nil {
		out.UserMasks = make(map[string]Mask, len(r.UserMasks))
		for user, m := range r.UserMasks {
			cm := make(Mask, len(m))
			for k, v := range m {
				cm[k] = v
			}
			out.UserMasks[user] = cm
		}
	}
	return out
}

// Mutator applies an in-place change to a stored resource inside an atomic
// update.
type Mutator func(*Resource) error

// Store defines the persistence contract for resources.
type Store interface {
	// Get returns the resource by id, or access.ErrResourceNotFound.
	Get(ctx context.Context, id string) (*Resource, error)

	// CreateIfAbsent persists the resource if its id is unknown. It
	// reports true when the record was created and false when the id
	// already existed; an existing record is left untouched.
	CreateIfAbsent(ctx context.Context, res *Resource) (bool, error)

	// AtomicUpdate applies the mutator to the stored record as a single
	// atomic read-modify-write and returns the updated resource.
	AtomicUpdate(ctx context.Context, id string, mutate Mutator) (*Resource, error)
}
