package booking

import (
	"reflect"
	"testing"
)

func TestDiffUser(t *testing.T) {
	base := User{ID: 1, Email: "ada@example.com", Name: "Ada", Token: "t1"}
	tests := []struct {
		name string
		to   User
		want []PatchOp
	}{
		{"unchanged", base, nil},
		{"token ignored", User{ID: 1, Email: "ada@example.com", Name: "Ada", Token: "t2"}, nil},
		{
			"replace",
			User{ID: 1, Email: "ada@example.com", Name: "Grace", Token: "t1"},
			[]PatchOp{{Op: "replace", Path: "/name", Value: "Grace"}},
		},
		{
			"several fields",
			User{ID: 1, Email: "grace@example.com", Name: "Grace", Token: "t1"},
			[]PatchOp{
				{Op: "replace", Path: "/email", Value: "grace@example.com"},
				{Op: "replace", Path: "/name", Value: "Grace"},
			},
		},
		{
			"signed out token ignored",
			User{ID: 1, Email: "ada@example.com", Name: "Ada"},
			nil,
		},
		{
			"add and remove",
			User{ID: 1, Email: "ada@example.com", Phone: "555-0100"},
			[]PatchOp{
				{Op: "remove", Path: "/name"},
				{Op: "add", Path: "/phone", Value: "555-0100"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiffUser(base, tt.to)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DiffUser() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
