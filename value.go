// value.go — runtime value model and binding environment.
//
// Value is the universal tagged carrier used by both execution engines. The
// rule language holds: null, bool, int64, float64, string, arrays, ordered
// maps, class objects (Record factories), record instances (named bags of
// mutable fields) and native builtin functions.
//
// Records use reference semantics while live (two bindings may alias one
// *Record; a field write through one is visible through the other). Step
// snapshots (record.go) deep-copy, so captured state keeps value semantics.
package ruledbg

import (
	"sort"
	"strconv"
	"strings"
)

// ValueTag enumerates all runtime kinds a Value may hold. The tag determines
// which Go type Value.Data carries.
type ValueTag int

const (
	VTNull   ValueTag = iota // nil
	VTBool                   // bool
	VTInt                    // int64
	VTNum                    // float64
	VTStr                    // string
	VTArray                  // []Value
	VTMap                    // *MapObject (ordered)
	VTClass                  // *Class
	VTRecord                 // *Record (shared handle; aliasing is intended)
	VTNative                 // *Native
)

// Value is the universal runtime carrier.
type Value struct {
	Tag  ValueTag
	Data interface{}
}

// Null is the singleton null Value.
var Null = Value{Tag: VTNull}

// Primitive constructors.
func Bool(b bool) Value    { return Value{Tag: VTBool, Data: b} }
func Int(n int64) Value    { return Value{Tag: VTInt, Data: n} }
func Num(f float64) Value  { return Value{Tag: VTNum, Data: f} }
func Str(s string) Value   { return Value{Tag: VTStr, Data: s} }
func Arr(xs []Value) Value { return Value{Tag: VTArray, Data: xs} }

// MapObject is an ordered map preserving insertion order. Keys is the
// iteration order; Entries the storage.
type MapObject struct {
	Entries map[string]Value
	Keys    []string
}

// NewMapObject returns an empty ordered map.
func NewMapObject() *MapObject {
	return &MapObject{Entries: map[string]Value{}}
}

// Set binds key to v, appending to Keys on first insertion.
func (m *MapObject) Set(key string, v Value) {
	if _, ok := m.Entries[key]; !ok {
		m.Keys = append(m.Keys, key)
	}
	m.Entries[key] = v
}

// Get looks a key up.
func (m *MapObject) Get(key string) (Value, bool) {
	v, ok := m.Entries[key]
	return v, ok
}

// MapVal wraps an ordered map into a Value.
func MapVal(m *MapObject) Value { return Value{Tag: VTMap, Data: m} }

// Class is a record factory declared by `class Name:`. Defaults hold the
// field-default assignments evaluated at declaration time, in declaration
// order.
type Class struct {
	Name     string
	Defaults *MapObject
}

// Record is a named bag of mutable fields. Fields are created on first
// assignment; there is no schema beyond the class defaults it was seeded
// with. Values of record type share the *Record handle, so aliased bindings
// observe each other's field writes.
type Record struct {
	Class  string
	Fields *MapObject
}

// NewRecord instantiates a class, seeding fields from its defaults.
func NewRecord(c *Class) *Record {
	r := &Record{Class: c.Name, Fields: NewMapObject()}
	for _, k := range c.Defaults.Keys {
		r.Fields.Set(k, c.Defaults.Entries[k])
	}
	return r
}

// NativeImpl is the implementation signature for registry builtins. args are
// the positional arguments; kwargs the keyword arguments by name. Failures
// are raised with fail()/failf() (errors.go) and recovered at the engine
// boundary.
type NativeImpl func(args []Value, kwargs map[string]Value) Value

// Native is a registered builtin callable.
type Native struct {
	Name string
	Doc  string
	Impl NativeImpl
}

// NativeVal wraps a builtin into a Value.
func NativeVal(n *Native) Value { return Value{Tag: VTNative, Data: n} }

// Truthy applies the rule language's coercion: None, False, 0, 0.0, "",
// empty collections are false; everything else (records, classes, builtins
// included) is true.
func Truthy(v Value) bool {
	switch v.Tag {
	case VTNull:
		return false
	case VTBool:
		return v.Data.(bool)
	case VTInt:
		return v.Data.(int64) != 0
	case VTNum:
		return v.Data.(float64) != 0
	case VTStr:
		return v.Data.(string) != ""
	case VTArray:
		return len(v.Data.([]Value)) > 0
	case VTMap:
		return len(v.Data.(*MapObject).Keys) > 0
	default:
		return true
	}
}

// TypeName names a value's kind for error messages.
func TypeName(v Value) string {
	switch v.Tag {
	case VTNull:
		return "None"
	case VTBool:
		return "bool"
	case VTInt:
		return "int"
	case VTNum:
		return "float"
	case VTStr:
		return "str"
	case VTArray:
		return "list"
	case VTMap:
		return "dict"
	case VTClass:
		return "class"
	case VTRecord:
		return v.Data.(*Record).Class
	case VTNative:
		return "builtin"
	default:
		return "unknown"
	}
}

// String renders the value's display form, mirroring the rule language's own
// repr: strings quoted, True/False/None capitalized, collections inline,
// records as <ClassName field=..., ...>.
func (v Value) String() string {
	switch v.Tag {
	case VTNull:
		return "None"
	case VTBool:
		if v.Data.(bool) {
			return "True"
		}
		return "False"
	case VTInt:
		return strconv.FormatInt(v.Data.(int64), 10)
	case VTNum:
		return strconv.FormatFloat(v.Data.(float64), 'g', -1, 64)
	case VTStr:
		return strconv.Quote(v.Data.(string))
	case VTArray:
		xs := v.Data.([]Value)
		parts := make([]string, len(xs))
		for i, x := range xs {
			parts[i] = x.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case VTMap:
		m := v.Data.(*MapObject)
		parts := make([]string, 0, len(m.Keys))
		for _, k := range m.Keys {
			parts = append(parts, strconv.Quote(k)+": "+m.Entries[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case VTClass:
		return "<class " + v.Data.(*Class).Name + ">"
	case VTRecord:
		r := v.Data.(*Record)
		parts := make([]string, 0, len(r.Fields.Keys))
		for _, k := range r.Fields.Keys {
			parts = append(parts, k+"="+r.Fields.Entries[k].String())
		}
		return "<" + r.Class + " " + strings.Join(parts, ", ") + ">"
	case VTNative:
		return "<builtin " + v.Data.(*Native).Name + ">"
	default:
		return "<unknown>"
	}
}

// Env is a binding environment frame with a parent link. Lookups walk
// parent-ward. One Env per execution; rule blocks share the frame (the
// language has no block-local scoping).
type Env struct {
	parent *Env
	table  map[string]Value
}

// NewEnv creates a frame with the given parent (which may be nil).
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, table: make(map[string]Value)}
}

// Define binds name in the current frame, shadowing any outer binding.
func (e *Env) Define(name string, v Value) { e.table[name] = v }

// Get retrieves the nearest visible binding for name.
func (e *Env) Get(name string) (Value, bool) {
	if v, ok := e.table[name]; ok {
		return v, true
	}
	if e.parent != nil {
		return e.parent.Get(name)
	}
	return Value{}, false
}

// Names lists all identifiers visible from this frame, sorted. Used for
// unknown-name suggestions and snapshot capture of user bindings.
func (e *Env) Names() []string {
	seen := map[string]bool{}
	var out []string
	for f := e; f != nil; f = f.parent {
		for k := range f.table {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Local reports the bindings of this frame only (not ancestors), in sorted
// order. Step snapshots capture the execution frame, not the builtin
// registry beneath it.
func (e *Env) Local() map[string]Value {
	out := make(map[string]Value, len(e.table))
	for k, v := range e.table {
		out[k] = v
	}
	return out
}
