package binding

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"
)

// TypeString renders t in manifest syntax, the inverse of ParseType.
// Named type definitions render as their name.
func TypeString(t wit.Type) string {
	switch v := t.(type) {
	case nil:
		return "_"
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		return typeDefString(v)
	default:
		return fmt.Sprintf("%T", t)
	}
}

func typeDefString(td *wit.TypeDef) string {
	switch k := td.Kind.(type) {
	case *wit.List:
		return "list<" + TypeString(k.Type) + ">"
	case *wit.Option:
		return "option<" + TypeString(k.Type) + ">"
	case *wit.Tuple:
		parts := make([]string, len(k.Types))
		for i, t := range k.Types {
			parts[i] = TypeString(t)
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	case *wit.Result:
		switch {
		case k.OK == nil && k.Err == nil:
			return "result"
		case k.Err == nil:
			return "result<" + TypeString(k.OK) + ">"
		default:
			return "result<" + TypeString(k.OK) + ", " + TypeString(k.Err) + ">"
		}
	case wit.Type:
		return TypeString(k)
	default:
		return typeName(k)
	}
}

// String renders the signature as a manifest declaration without the
// trailing semicolon.
func (s *Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString(": ")
	if s.Async {
		b.WriteString("async ")
	}
	b.WriteString("func(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(TypeString(p.Type))
	}
	b.WriteByte(')')
	if s.Result != nil {
		b.WriteString(" -> ")
		b.WriteString(TypeString(s.Result))
	}
	return b.String()
}
