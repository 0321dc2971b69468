package runtime

import (
	"context"
	"testing"

	"github.com/wippyai/ffibridge/errors"
	"github.com/wippyai/ffibridge/native"
	"github.com/wippyai/ffibridge/native/nativetest"
)

func TestCheckContract(t *testing.T) {
	ctx := context.Background()
	lib := nativetest.New()
	lib.SetContract(26, map[string]uint16{"add": 1111, "greet": 2222})
	rt, err := New(lib)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close(ctx)

	tests := []struct {
		checksums map[string]uint16
		name      string
		kind      errors.Kind
		version   uint32
	}{
		{name: "nothing to check", version: 0},
		{name: "version only", version: 26},
		{name: "checksums only", checksums: map[string]uint16{"add": 1111}},
		{name: "all", version: 26, checksums: map[string]uint16{"add": 1111, "greet": 2222}},
		{name: "version mismatch", version: 25, kind: errors.KindContractMismatch},
		{name: "checksum mismatch", version: 26, checksums: map[string]uint16{"greet": 9}, kind: errors.KindContractMismatch},
		{name: "unknown function", checksums: map[string]uint16{"nope": 1}, kind: errors.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rt.CheckContract(ctx, tt.version, tt.checksums)
			if tt.kind == "" {
				if err != nil {
					t.Fatalf("CheckContract: %v", err)
				}
				return
			}
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("err = %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestCheckContract_MismatchDetail(t *testing.T) {
	lib := nativetest.New()
	lib.SetContract(26, nil)
	rt, _ := New(lib)
	defer rt.Close(context.Background())

	err := rt.CheckContract(context.Background(), 30, nil)
	e, ok := errors.AsError(err)
	if !ok {
		t.Fatalf("err = %v", err)
	}
	if e.Symbol != "contract_version" {
		t.Errorf("Symbol = %q", e.Symbol)
	}
	if e.Value != uint64(26) {
		t.Errorf("Value = %v, want reported version 26", e.Value)
	}
}

func TestCheckContract_Unsupported(t *testing.T) {
	// Only the native.Library methods are visible through the wrapper.
	lib := struct{ native.Library }{nativetest.New()}
	rt, _ := New(lib)
	defer rt.Close(context.Background())

	if err := rt.CheckContract(context.Background(), 1, nil); !errors.IsKind(err, errors.KindUnsupported) {
		t.Errorf("err = %v, want unsupported", err)
	}
	if err := rt.CheckContract(context.Background(), 0, nil); err != nil {
		t.Errorf("empty check err = %v", err)
	}
}
