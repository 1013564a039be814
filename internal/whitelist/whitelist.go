// Package whitelist decides which recipients may receive operator-only
// notification kinds and enumerates broadcast targets.
package whitelist

import (
	"context"
	"sort"
)

type Whitelist interface {
	// IsOperator reports whether recipient is on the operator list.
	IsOperator(ctx context.Context, recipient string) (bool, error)
	// ListOperators returns all operator recipients, sorted, without
	// duplicates. Used as the target set for broadcasts.
	ListOperators(ctx context.Context) ([]string, error)
}

// Static is a fixed in-memory whitelist. Used in tests and in
// deployments that manage operators purely through configuration.
type Static struct {
	ids map[string]struct{}
}

func NewStatic(ids []string) *Static {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return &Static{ids: set}
}

func (s *Static) IsOperator(_ context.Context, recipient string) (bool, error) {
	_, ok := s.ids[recipient]
	return ok, nil
}

func (s *Static) ListOperators(_ context.Context) ([]string, error) {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// compile-time check that Static implements Whitelist
var _ Whitelist = (*Static)(nil)
