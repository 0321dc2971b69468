package engine

import (
	"sort"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/ffibridge/native"
)

// Export describes one exported function of a native library.
type Export struct {
	Symbol  string
	Name    string // declared name, empty for contract symbols
	Params  []api.ValueType
	Results []api.ValueType
	Role    native.Role
}

// Signature renders the export's core type, e.g. "(i64, i64) -> (i32)".
func (e Export) Signature() string {
	return valueTypes(e.Params) + " -> " + valueTypes(e.Results)
}

func valueTypes(ts []api.ValueType) string {
	s := "("
	for i, t := range ts {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(t)
	}
	return s + ")"
}

// Exports lists the library's exported functions sorted by symbol, each
// classified by the role its name gives it.
func (l *Library) Exports() []Export {
	defs := l.mod.ExportedFunctionDefinitions()
	out := make([]Export, 0, len(defs))
	for sym, def := range defs {
		role, name := l.symbols.Classify(sym)
		out = append(out, Export{
			Symbol:  sym,
			Name:    name,
			Role:    role,
			Params:  def.ParamTypes(),
			Results: def.ResultTypes(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Functions returns the declared names of sync functions, sorted.
func (l *Library) Functions() []string {
	return l.declared(native.RoleFunction)
}

// AsyncFunctions returns the declared names with a complete poll, complete
// and free triple, sorted.
func (l *Library) AsyncFunctions() []string {
	polls := l.declared(native.RolePoll)
	out := polls[:0]
	for _, name := range polls {
		_, complete, free := l.symbols.Async(name)
		if l.mod.ExportedFunction(complete) != nil && l.mod.ExportedFunction(free) != nil {
			out = append(out, name)
		}
	}
	return out
}

func (l *Library) declared(role native.Role) []string {
	var out []string
	for _, e := range l.Exports() {
		if e.Role == role {
			out = append(out, e.Name)
		}
	}
	return out
}
