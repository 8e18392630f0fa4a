package embeddings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Kind identifies the JSON scalar type held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "invalid"
	}
}

// Value is a categorical option value: a JSON string, number or boolean.
// Values are comparable and can be used as map keys.
//
// Ordering is total: booleans sort before numbers, numbers before strings,
// and values of the same kind sort naturally (false < true, numeric order,
// byte-wise string order).
//
// Integers whose magnitude exceeds 2^53 are kept exactly in decimal form so
// that distinct large ids stay distinct.
type Value struct {
	kind  Kind
	b     bool
	n     float64
	exact string // set only for integers beyond maxExactFloat
	s     string
}

// maxExactFloat is the largest magnitude below which every integer has an
// exact float64 representation.
const maxExactFloat = 1 << 53

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number returns a numeric Value.
func Number(n float64) Value {
	v := Value{kind: KindNumber, n: n}
	if math.Abs(n) > maxExactFloat && !math.IsInf(n, 0) {
		// Floats this large are integers.
		z, _ := big.NewFloat(n).Int(nil)
		v.exact = z.String()
	}
	return v
}

// integer returns a numeric Value for z, exact beyond float64 precision.
func integer(z *big.Int) (Value, error) {
	f, _ := new(big.Float).SetInt(z).Float64()
	if math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("option value %s is out of range", z)
	}
	v := Value{kind: KindNumber, n: f}
	if z.CmpAbs(big.NewInt(maxExactFloat)) > 0 {
		v.exact = z.String()
	}
	return v, nil
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// ValueOf converts a Go scalar to a Value. Strings, booleans, all integer
// and float types and json.Number are accepted.
func ValueOf(v interface{}) (Value, error) {
	switch x := v.(type) {
	case Value:
		if x.kind == KindInvalid {
			return Value{}, fmt.Errorf("invalid option value")
		}
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return integer(big.NewInt(int64(x)))
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return integer(big.NewInt(x))
	case uint:
		return integer(new(big.Int).SetUint64(uint64(x)))
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return integer(new(big.Int).SetUint64(x))
	case float32:
		return finiteNumber(float64(x))
	case float64:
		return finiteNumber(x)
	case json.Number:
		if isIntegerLiteral(x.String()) {
			if z, ok := new(big.Int).SetString(x.String(), 10); ok {
				return integer(z)
			}
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return finiteNumber(f)
	case nil:
		return Value{}, fmt.Errorf("option value is null")
	default:
		return Value{}, fmt.Errorf("unsupported option value type %T", v)
	}
}

func finiteNumber(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("option value %v is not a finite number", f)
	}
	return Number(f), nil
}

// isIntegerLiteral reports whether a JSON number has no fraction or exponent.
func isIntegerLiteral(s string) bool {
	return s != "" && !strings.ContainsAny(s, ".eE")
}

// Kind reports the scalar type of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal to
// or after o.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		if v.kind < o.kind {
			return -1
		}
		return 1
	}
	switch v.kind {
	case KindBool:
		switch {
		case v.b == o.b:
			return 0
		case !v.b:
			return -1
		default:
			return 1
		}
	case KindNumber:
		switch {
		case v.n < o.n:
			return -1
		case v.n > o.n:
			return 1
		case v.exact == o.exact:
			return 0
		}
		// Equal as float64 but at least one side is a large exact integer.
		return v.bigInt().Cmp(o.bigInt())
	case KindString:
		return strings.Compare(v.s, o.s)
	}
	return 0
}

func (v Value) bigInt() *big.Int {
	if v.exact != "" {
		z, _ := new(big.Int).SetString(v.exact, 10)
		return z
	}
	z, _ := big.NewFloat(v.n).Int(nil)
	return z
}

// String renders v for display.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.exact != "" {
			return v.exact
		}
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return v.s
	default:
		return ""
	}
}

// Interface returns v as a plain Go value: a string, a bool, a float64, or a
// json.Number for integers beyond float64 precision.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if v.exact != "" {
			return json.Number(v.exact)
		}
		return v.n
	case KindString:
		return v.s
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindInvalid {
		return nil, fmt.Errorf("cannot marshal invalid option value")
	}
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch raw.(type) {
	case string, bool, json.Number:
	default:
		return fmt.Errorf("option value must be a string, number or boolean, got %s", describeJSON(raw))
	}
	val, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

func describeJSON(raw interface{}) string {
	switch raw.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	default:
		return fmt.Sprintf("%T", raw)
	}
}
