package binding

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffibridge/errors"
)

// Param is a named, typed function parameter.
type Param struct {
	Type wit.Type
	Name string
}

// Signature is a declared native function.
type Signature struct {
	// Result is nil for functions returning nothing.
	Result wit.Type
	Name   string
	Params []Param
	Async  bool
}

// Returns splits the declared result into the value type and the error type
// reported through the call status. A result<T, E> return yields (T, E).
func (s *Signature) Returns() (ok, fail wit.Type) {
	if td, isDef := s.Result.(*wit.TypeDef); isDef {
		if r, isResult := td.Kind.(*wit.Result); isResult {
			return r.OK, r.Err
		}
	}
	return s.Result, nil
}

// Manifest is a set of declared functions.
type Manifest struct {
	funcs map[string]*Signature
}

// Lookup returns the signature of name.
func (m *Manifest) Lookup(name string) (*Signature, error) {
	sig, ok := m.funcs[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "function", name)
	}
	return sig, nil
}

// Names returns the declared function names, sorted.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.funcs))
	for name := range m.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of declared functions.
func (m *Manifest) Len() int {
	return len(m.funcs)
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read manifest "+path, err)
	}
	return ParseManifest(string(data))
}

var funcPattern = regexp.MustCompile(`(?:export\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*(async\s+)?func\s*\(([^)]*)\)(?:\s*->\s*([^;\n]+))?`)

// ParseManifest extracts function declarations of the form
// name: [async] func(params) [-> result];
// Names may be kebab-case; they are stored with dashes replaced by
// underscores to match symbol names.
func ParseManifest(text string) (*Manifest, error) {
	m := &Manifest{funcs: make(map[string]*Signature)}

	for _, match := range funcPattern.FindAllStringSubmatch(text, -1) {
		name := strings.ReplaceAll(match[1], "-", "_")
		sig := &Signature{
			Name:  name,
			Async: match[2] != "",
		}

		if params := strings.TrimSpace(match[3]); params != "" {
			for _, p := range splitParams(params) {
				pname, ptype, found := strings.Cut(p, ":")
				if !found {
					return nil, errors.InvalidInput(errors.PhaseLoad, "parameter without type in "+name+": "+p)
				}
				t, err := ParseType(ptype)
				if err != nil {
					return nil, err
				}
				sig.Params = append(sig.Params, Param{Name: strings.TrimSpace(pname), Type: t})
			}
		}

		if result := strings.TrimSpace(match[4]); result != "" && result != "()" {
			if strings.HasPrefix(result, "(") {
				return nil, errors.Unsupported(errors.PhaseLoad, "multiple results in "+name)
			}
			t, err := ParseType(result)
			if err != nil {
				return nil, err
			}
			sig.Result = t
		}

		if _, dup := m.funcs[name]; dup {
			return nil, errors.InvalidInput(errors.PhaseLoad, "duplicate function "+name)
		}
		m.funcs[name] = sig
	}

	if len(m.funcs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "no functions found in manifest")
	}
	return m, nil
}

// splitParams splits a parameter list on top-level commas.
func splitParams(s string) []string {
	var result []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(', '<':
			depth++
			current.WriteRune(ch)
		case ')', '>':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if str := strings.TrimSpace(current.String()); str != "" {
					result = append(result, str)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if str := strings.TrimSpace(current.String()); str != "" {
		result = append(result, str)
	}
	return result
}
