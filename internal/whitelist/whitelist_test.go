package whitelist

import (
	"context"
	"testing"
)

func TestStatic_IsOperator(t *testing.T) {
	t.Parallel()

	wl := NewStatic([]string{"100", "200", ""})

	ok, err := wl.IsOperator(context.Background(), "100")
	if err != nil {
		t.Fatalf("IsOperator() error: %v", err)
	}
	if !ok {
		t.Fatalf("expected 100 to be an operator")
	}

	ok, _ = wl.IsOperator(context.Background(), "999")
	if ok {
		t.Fatalf("expected 999 not to be an operator")
	}

	// Empty ids are dropped, not treated as wildcard entries.
	ok, _ = wl.IsOperator(context.Background(), "")
	if ok {
		t.Fatalf("expected empty recipient not to be an operator")
	}
}

func TestStatic_ListOperators(t *testing.T) {
	t.Parallel()

	wl := NewStatic([]string{"300", "100", "200", "100"})

	ids, err := wl.ListOperators(context.Background())
	if err != nil {
		t.Fatalf("ListOperators() error: %v", err)
	}
	want := []string{"100", "200", "300"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d operators, got %d: %v", len(want), len(ids), ids)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("expected ids[%d] = %q, got %q", i, id, ids[i])
		}
	}
}
