// Package tagvalue implements the bridge's runtime-typed tag value and the
// type-inference rule that derives an ENIP primitive type from it.
package tagvalue

import "fmt"

// EnipType is the ENIP primitive type a Value is advertised as.
type EnipType string

const (
	EnipBool   EnipType = "BOOL"
	EnipReal   EnipType = "REAL"
	EnipString EnipType = "STRING"
)

// Value is a runtime value arriving from the cloud namespace or a PLC read,
// untagged until Infer derives its ENIP type.
type Value struct {
	Bool    bool
	Real    float64
	String  string
	Array   []Value
	IsBool  bool
	IsReal  bool
	IsArray bool
	// IsString is implicit: not Bool, not Real, not Array.
}

// Bool wraps a boolean as a Value.
func Bool(v bool) Value { return Value{Bool: v, IsBool: true} }

// Real wraps a float64 as a Value.
func Real(v float64) Value { return Value{Real: v, IsReal: true} }

// Int wraps an integer as a Value. Per spec, integers are advertised as
// REAL; precision loss beyond 2^24 is an accepted limitation.
func Int(v int64) Value { return Value{Real: float64(v), IsReal: true} }

// String wraps a string as a Value.
func String(v string) Value { return Value{String: v} }

// Array wraps a non-empty slice of homogeneous Values.
func Array(vs []Value) Value { return Value{Array: vs, IsArray: true} }

// Raw builds a Value from an untyped JSON-like primitive (bool, float64,
// int, string, or []any), as arrives from a decoded cloud message.
func Raw(v any) Value {
	switch x := v.(type) {
	case bool:
		return Bool(x)
	case float64:
		return Real(x)
	case int:
		return Int(int64(x))
	case int64:
		return Int(x)
	case string:
		return String(x)
	case []any:
		elems := make([]Value, 0, len(x))
		for _, e := range x {
			elems = append(elems, Raw(e))
		}
		return Array(elems)
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// Infer derives the ENIP type this value should be advertised as.
//
//   - bool -> BOOL
//   - integer or float -> REAL
//   - string -> STRING
//   - non-empty array -> "<elem type>[n]"; empty array -> "REAL[0]", never
//     advertised as a registry entry
//   - anything else -> STRING
func Infer(v Value) string {
	switch {
	case v.IsBool:
		return string(EnipBool)
	case v.IsReal:
		return string(EnipReal)
	case v.IsArray:
		if len(v.Array) == 0 {
			return "REAL[0]"
		}
		return fmt.Sprintf("%s[%d]", Infer(v.Array[0]), len(v.Array))
	default:
		return string(EnipString)
	}
}

// Scalar returns the single scalar this value carries for ENIP transport.
// Arrays collapse to element [0], matching the source's array-handling
// limitation (ENIP writes of array tags are effectively scalar writes).
func Scalar(v Value) Value {
	if v.IsArray {
		if len(v.Array) == 0 {
			return Real(0)
		}
		return v.Array[0]
	}
	return v
}

// Equal reports whether two values are identical for restart/change
// purposes. Exact equality, no float tolerance — tolerance belongs to the
// sync reconciliation layer, not to value identity.
func Equal(a, b Value) bool {
	if a.IsBool != b.IsBool || a.IsReal != b.IsReal || a.IsArray != b.IsArray {
		return false
	}
	switch {
	case a.IsBool:
		return a.Bool == b.Bool
	case a.IsReal:
		return a.Real == b.Real
	case a.IsArray:
		if len(a.Array) != len(b.Array) {
			return false
		}
		for i := range a.Array {
			if !Equal(a.Array[i], b.Array[i]) {
				return false
			}
		}
		return true
	default:
		return a.String == b.String
	}
}

// Interface returns the value as a plain Go interface{}, for publishing
// back to the cloud namespace.
func Interface(v Value) any {
	switch {
	case v.IsBool:
		return v.Bool
	case v.IsReal:
		return v.Real
	case v.IsArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = Interface(e)
		}
		return out
	default:
		return v.String
	}
}
