package native

import "testing"

func TestSymbols(t *testing.T) {
	s := Symbols{Namespace: "math"}

	if got := s.Buffer(OpAlloc); got != "ffi_math_buffer_alloc" {
		t.Errorf("Buffer(alloc) = %q", got)
	}
	if got := s.Function("add"); got != "math_fn_add" {
		t.Errorf("Function(add) = %q", got)
	}
	poll, complete, free := s.Async("fetch")
	if poll != "math_fn_fetch_poll" || complete != "math_fn_fetch_complete" || free != "math_fn_fetch_free" {
		t.Errorf("Async(fetch) = %q, %q, %q", poll, complete, free)
	}
	if got := s.ContractVersion(); got != "ffi_math_contract_version" {
		t.Errorf("ContractVersion() = %q", got)
	}
}

func TestSymbols_Classify(t *testing.T) {
	s := Symbols{Namespace: "math"}

	tests := []struct {
		symbol string
		name   string
		role   Role
	}{
		{"ffi_math_buffer_alloc", "alloc", RoleBuffer},
		{"ffi_math_buffer_from_bytes", "from_bytes", RoleBuffer},
		{"ffi_math_contract_version", "", RoleContract},
		{"math_fn_add", "add", RoleFunction},
		{"math_fn_fetch_poll", "fetch", RolePoll},
		{"math_fn_fetch_complete", "fetch", RoleComplete},
		{"math_fn_fetch_free", "fetch", RoleFree},
		{"math_fn__poll", "_poll", RoleFunction},
		{"math_clone_counter", "counter", RoleObjectClone},
		{"math_free_counter", "counter", RoleObjectFree},
		{"math_checksum_add", "add", RoleChecksum},
		{"other_fn_add", "", RoleUnknown},
		{"memory", "", RoleUnknown},
		{"math_fn_", "", RoleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			role, name := s.Classify(tt.symbol)
			if role != tt.role || name != tt.name {
				t.Errorf("Classify(%q) = %v, %q; want %v, %q", tt.symbol, role, name, tt.role, tt.name)
			}
		})
	}
}

func TestSymbols_RoundTrip(t *testing.T) {
	s := Symbols{Namespace: "app"}
	poll, complete, free := s.Async("download_file")
	for sym, want := range map[string]Role{poll: RolePoll, complete: RoleComplete, free: RoleFree} {
		role, name := s.Classify(sym)
		if role != want || name != "download_file" {
			t.Errorf("Classify(%q) = %v, %q", sym, role, name)
		}
	}
}

func TestCallStatusWords(t *testing.T) {
	st := CallStatus{Code: CallUnexpectedError, ErrorBuf: Buffer{Capacity: 16, Len: 4, Data: 1024}}
	got := StatusFromWords(st.Words())
	if got != st {
		t.Errorf("StatusFromWords(Words()) = %+v, want %+v", got, st)
	}

	neg := CallStatus{Code: -3}
	if got := StatusFromWords(neg.Words()); got.Code != -3 {
		t.Errorf("negative code = %d, want -3", got.Code)
	}
}

func TestBufferWords(t *testing.T) {
	b := Buffer{Capacity: 32, Len: 5, Data: 4096}
	if got := BufferFromWords(b.Words()); got != b {
		t.Errorf("BufferFromWords(Words()) = %+v", got)
	}
	if !(Buffer{}).IsEmpty() {
		t.Error("zero buffer should be empty")
	}
	if b.IsEmpty() {
		t.Error("buffer with payload reported empty")
	}
}
