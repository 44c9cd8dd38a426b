package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Key identifies a cached resource and its parameters, for example
// ["appointments", "2022", "06"].
//
// Components are normalized on construction: every integer kind becomes
// int64, integral floats become int64, other floats stay float64. Two keys
// built from 6 and int64(6) are therefore equal.
type Key []any

// NewKey builds a Key from primitive components.
// Only strings, numbers and bools are accepted.
func NewKey(parts ...any) (Key, error) {
	k := make(Key, 0, len(parts))
	for i, p := range parts {
		norm, err := normalize(p)
		if err != nil {
			return nil, fmt.Errorf("%w: component %d: %v", ErrInvalidKey, i, err)
		}
		k = append(k, norm)
	}
	if len(k.String()) > MaxKeyLength {
		return nil, ErrKeyTooLong
	}
	return k, nil
}

// MustKey is like NewKey but panics on a malformed key.
// A malformed key is a programming error, not a runtime condition.
func MustKey(parts ...any) Key {
	k, err := NewKey(parts...)
	if err != nil {
		panic(err)
	}
	return k
}

// Append returns a new key with parts added after k's components.
func (k Key) Append(parts ...any) (Key, error) {
	all := make([]any, 0, len(k)+len(parts))
	all = append(all, k...)
	all = append(all, parts...)
	return NewKey(all...)
}

// Equal reports whether a and b have the same components in the same order.
func Equal(a, b Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsPrefixOf reports whether every component of k equals the corresponding
// component of other. The empty key is a prefix of every key.
func (k Key) IsPrefixOf(other Key) bool {
	if len(k) > len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// String returns the canonical JSON form of the key.
// Equal keys always have the same string, which the store uses as map id.
func (k Key) String() string {
	if len(k) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range k {
		if i > 0 {
			b.WriteByte(',')
		}
		enc, err := json.Marshal(p)
		if err != nil {
			// normalize only admits JSON-encodable values
			panic(fmt.Sprintf("cache: unencodable key component %v", p))
		}
		b.Write(enc)
	}
	b.WriteByte(']')
	return b.String()
}

// Family returns the first component as a string, or "" for the empty key.
// It names the resource family in logs and metrics.
func (k Key) Family() string {
	if len(k) == 0 {
		return ""
	}
	return fmt.Sprint(k[0])
}

func normalize(p any) (any, error) {
	switch v := p.(type) {
	case string:
		if strings.ContainsAny(v, "\n\r") {
			return nil, fmt.Errorf("string contains newline")
		}
		return v, nil
	case bool:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return normalizeUnsigned(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return normalizeUnsigned(v)
	case float32:
		return normalizeFloat(float64(v))
	case float64:
		return normalizeFloat(v)
	default:
		return nil, fmt.Errorf("unsupported type %T", p)
	}
}

func normalizeUnsigned(v uint64) (any, error) {
	if v > math.MaxInt64 {
		return nil, fmt.Errorf("unsigned value %d overflows int64", v)
	}
	return int64(v), nil
}

func normalizeFloat(v float64) (any, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("non-finite number")
	}
	if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
		return int64(v), nil
	}
	return v, nil
}
