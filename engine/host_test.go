package engine

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
)

func TestHost_Routing(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	h, err := NewHost(ctx, rt, nil)
	if err != nil {
		t.Fatal(err)
	}

	type wake struct {
		data uint64
		poll int8
	}
	var got []wake
	record := func(data uint64, poll int8) { got = append(got, wake{data, poll}) }

	a := h.expect(record, 100)
	b := h.expect(record, 100)
	if a == b {
		t.Fatalf("tokens collide: %d", a)
	}
	if h.Pending() != 2 {
		t.Fatalf("Pending() = %d", h.Pending())
	}

	fn := rt.Module(HostModule).ExportedFunction(HostContinuation)
	if _, err := fn.Call(ctx, b, 1); err != nil {
		t.Fatal(err)
	}
	// Second wake on the same token is dropped.
	if _, err := fn.Call(ctx, b, 0); err != nil {
		t.Fatal(err)
	}
	// Unknown token.
	if _, err := fn.Call(ctx, 999, 0); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 || got[0] != (wake{100, 1}) {
		t.Errorf("wakes = %v", got)
	}

	h.forget(a)
	if h.Pending() != 0 {
		t.Errorf("Pending() = %d after forget", h.Pending())
	}
}
