package dispatch

import (
	"github.com/jgarte/gn-proxy/access"
	"github.com/jgarte/gn-proxy/resource"
)

// PermittedLevel computes the highest action index the user may invoke on
// the resource's branch.
//
// The owner of a resource receives the branch's top level when the type's
// action set enables owner access. Otherwise the user's explicit mask
// override applies, then the resource's default mask, then level 0. The
// result is clamped to the branch, so the index-0 action is always
// available.
func PermittedLevel(set *access.ActionSet, res *resource.Resource, branch, userID string) (int, error) {
	b, ok := set.Branch(branch)
	if !ok {
		return 0, access.Errf(access.ErrBranchNotFound, "branch %q not found on type %q", branch, res.Type)
	}

	if set.OwnerAccess && userID != "" && userID == res.OwnerID {
		return b.Top(), nil
	}

	level, ok := res.MaskLevel(userID, branch)
	if !ok {
		level = 0
	}
	if level < 0 {
		level = 0
	}
	if level > b.Top() {
		level = b.Top()
	}
	return level, nil
}

// Available returns the action names the user may invoke on the branch, in
// branch order. Because privilege is a single total order per branch, the
// result is always a prefix of the branch, never a sparse subset.
func Available(set *access.ActionSet, res *resource.Resource, branch, userID string) ([]string, error) {
	level, err := PermittedLevel(set, res, branch, userID)
	if err != nil {
		return nil, err
	}
	b, _ := set.Branch(branch)
	return b.Names(level), nil
}
