package cache

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestNewKey_Normalizes(t *testing.T) {
	tests := []struct {
		name string
		a, b []any
	}{
		{"int and int64", []any{"staff", 6}, []any{"staff", int64(6)}},
		{"uint8 and int", []any{uint8(3)}, []any{3}},
		{"integral float", []any{6.0}, []any{6}},
		{"float32", []any{float32(2)}, []any{int64(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := MustKey(tt.a...)
			b := MustKey(tt.b...)
			if !Equal(a, b) {
				t.Errorf("Equal(%s, %s) = false, want true", a, b)
			}
			if a.String() != b.String() {
				t.Errorf("String() differs: %s vs %s", a, b)
			}
		})
	}
}

func TestNewKey_KeepsFractionalFloat(t *testing.T) {
	k := MustKey(2.5)
	if _, ok := k[0].(float64); !ok {
		t.Fatalf("component type = %T, want float64", k[0])
	}
	if got := k.String(); got != "[2.5]" {
		t.Errorf("String() = %q, want %q", got, "[2.5]")
	}
}

func TestNewKey_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		parts []any
		want  error
	}{
		{"struct", []any{struct{}{}}, ErrInvalidKey},
		{"nil", []any{nil}, ErrInvalidKey},
		{"nan", []any{math.NaN()}, ErrInvalidKey},
		{"inf", []any{math.Inf(1)}, ErrInvalidKey},
		{"newline", []any{"a\nb"}, ErrInvalidKey},
		{"uint overflow", []any{uint64(math.MaxUint64)}, ErrInvalidKey},
		{"too long", []any{strings.Repeat("a", MaxKeyLength)}, ErrKeyTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKey(tt.parts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewKey() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMustKey_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustKey did not panic on invalid component")
		}
	}()
	MustKey([]int{1})
}

func TestKey_String(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{Key{}, "[]"},
		{MustKey("appointments", "2022", "06"), `["appointments","2022","06"]`},
		{MustKey("staff", 7, true), `["staff",7,true]`},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestKey_IsPrefixOf(t *testing.T) {
	a := MustKey("a")
	tests := []struct {
		prefix, key Key
		want        bool
	}{
		{a, MustKey("a"), true},
		{a, MustKey("a", "b"), true},
		{a, MustKey("a", "b", "c"), true},
		{a, MustKey("b"), false},
		{MustKey("a", "b"), MustKey("a"), false},
		{MustKey("a", "c"), MustKey("a", "b", "c"), false},
		{Key{}, MustKey("anything", 1), true},
		{MustKey(1), MustKey(1.0, "x"), true},
	}
	for _, tt := range tests {
		if got := tt.prefix.IsPrefixOf(tt.key); got != tt.want {
			t.Errorf("%s.IsPrefixOf(%s) = %v, want %v", tt.prefix, tt.key, got, tt.want)
		}
	}
}

func TestKey_Append(t *testing.T) {
	base := MustKey("appointments")
	k, err := base.Append("2022", "06")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if !Equal(k, MustKey("appointments", "2022", "06")) {
		t.Errorf("Append() = %s", k)
	}
	if len(base) != 1 {
		t.Errorf("Append modified receiver: %s", base)
	}
}

func TestKey_Family(t *testing.T) {
	if got := MustKey("appointments", "2022").Family(); got != "appointments" {
		t.Errorf("Family() = %q", got)
	}
	if got := (Key{}).Family(); got != "" {
		t.Errorf("Family() of empty key = %q", got)
	}
}
