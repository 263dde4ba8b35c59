// Package access defines the privilege model of the proxy: named actions
// arranged in strictly ordered branches, action sets describing one resource
// type's entire access surface, and the process-wide type registry.
//
// A branch is a single total order of privilege, not an arbitrary ACL:
// authorization reduces to one integer comparison against a mask level, and
// enumeration of a caller's options reduces to a prefix copy. Index 0 of
// every branch is by convention a deny action requiring no privilege, so the
// minimum permitted level is always satisfiable.
package access

import (
	"context"
	"fmt"

	"github.com/jgarte/gn-proxy/backend"
)

// Params carries named string parameters: a resource's opaque backend data,
// or the extra arguments supplied by the caller.
type Params map[string]string

// Handler performs the backend operation behind an authorized action.
// It receives the backend querier explicitly — handlers never reach for
// ambient connection state — plus the resource's data and the caller's
// parameters. Handlers carry no privilege logic.
type Handler func(ctx context.Context, qx backend.Querier, data, args Params) (any, error)

// Action is a named operation with a declared parameter contract.
type Action struct {
	Name           string
	RequiredParams []string
	Handler        Handler
}

// DenyAction returns the conventional index-0 action of a branch. Its
// handler performs no backend work and simply echoes the action name.
func DenyAction(name string) Action {
	return Action{
		Name: name,
		Handler: func(ctx context.Context, qx backend.Querier, data, args Params) (any, error) {
			return name, nil
		},
	}
}

// Branch is an ordered ladder of actions, lowest privilege first. The
// name→index map is built once at construction, so per-call lookup never
// scans.
type Branch struct {
	actions []Action
	index   map[string]int
}

// NewBranch builds a branch from its actions in ascending privilege order.
// It fails if the branch is empty or an action name repeats.
func NewBranch(actions ...Action) (*Branch, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("access: branch must contain at least one action")
	}
	idx := make(map[string]int, len(actions))
	for i, a := range actions {
		if a.Name == "" {
			return nil, fmt.Errorf("access: action at index %d has no name", i)
		}
		if _, dup := idx[a.Name]; dup {
			return nil, fmt.Errorf("access: duplicate action %q in branch", a.Name)
		}
		idx[a.Name] = i
	}
	return &Branch{actions: actions, index: idx}, nil
}

// MustBranch is NewBranch that panics on error. Intended for the static
// action-set tables built at startup.
func MustBranch(actions ...Action) *Branch {
	b, err := NewBranch(actions...)
	if err != nil {
		panic(err)
	}
	return b
}

// Len returns the number of actions in the branch.
func (b *Branch) Len() int { return len(b.actions) }

// Top returns the highest action index.
func (b *Branch) Top() int { return len(b.actions) - 1 }

// At returns the action at the given index.
func (b *Branch) At(i int) Action { return b.actions[i] }

// Lookup returns an action and its index by name.
func (b *Branch) Lookup(name string) (Action, int, bool) {
	i, ok := b.index[name]
	if !ok {
		return Action{}, 0, false
	}
	return b.actions[i], i, true
}

// Names returns the action names up to and including the given level, in
// branch order. Levels outside the branch are clamped.
func (b *Branch) Names(level int) []string {
	if level < 0 {
		level = 0
	}
	if level > b.Top() {
		level = b.Top()
	}
	names := make([]string, 0, level+1)
	for i := 0; i <= level; i++ {
		names = append(names, b.actions[i].Name)
	}
	return names
}

// ActionSet maps branch names to branches and defines one resource type's
// entire access surface.
type ActionSet struct {
	Branches map[string]*Branch

	// OwnerAccess grants the resource owner the highest level on every
	// branch. It is a per-type policy option, on by default.
	OwnerAccess bool
}

// NewActionSet creates an empty action set with owner access enabled.
func NewActionSet() *ActionSet {
	return &ActionSet{
		Branches:    make(map[string]*Branch),
		OwnerAccess: true,
	}
}

// Add registers a branch under the given name and returns the set for
// chaining. Adding a duplicate branch name panics; action sets are static
// tables assembled at startup.
func (s *ActionSet) Add(name string, b *Branch) *ActionSet {
	if _, dup := s.Branches[name]; dup {
		panic(fmt.Sprintf("access: duplicate branch %q in action set", name))
	}
	s.Branches[name] = b
	return s
}

// Branch returns the named branch.
func (s *ActionSet) Branch(name string) (*Branch, bool) {
	b, ok := s.Branches[name]
	return b, ok
}
