package booking

import (
	"fmt"
	"sort"

	"github.com/wI2L/jsondiff"
)

// tokenPath is never patched; the token belongs to the session.
const tokenPath = "/token"

// DiffUser returns the RFC 6902 operations that turn from into to, ordered
// by path. The token is never patched.
func DiffUser(from, to User) ([]PatchOp, error) {
	patch, err := jsondiff.Compare(from, to)
	if err != nil {
		return nil, fmt.Errorf("booking: diff user: %w", err)
	}

	var ops []PatchOp
	for _, op := range patch {
		path := string(op.Path)
		if path == tokenPath {
			continue
		}
		ops = append(ops, PatchOp{Op: string(op.Type), Path: path, Value: op.Value})
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Path < ops[j].Path })
	return ops, nil
}
