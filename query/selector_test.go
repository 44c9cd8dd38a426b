package query

import (
	"testing"

	"github.com/jonwraymond/querycache/cache"
)

func TestSelector_Memoizes(t *testing.T) {
	store := cache.NewStore(cache.DefaultPolicy())
	key := cache.MustKey("staff")
	store.Write(key, []string{"Divya", "Sandra", "Michael"})

	var runs int
	first := func(in []string) []string {
		runs++
		return in[:1]
	}
	var sel Selector[[]string]

	v, _ := store.Get(key)
	for range 3 {
		out, ok := sel.Select(v, Projection[[]string]{ID: "first", Fn: first})
		if !ok || len(out) != 1 || out[0] != "Divya" {
			t.Fatalf("Select() = (%v, %v)", out, ok)
		}
	}
	if runs != 1 {
		t.Errorf("projection ran %d times, want 1", runs)
	}

	sel.Select(v, Projection[[]string]{ID: "first-again", Fn: first})
	if runs != 2 {
		t.Errorf("projection ID change: runs = %d, want 2", runs)
	}

	store.Write(key, []string{"Mateo"})
	v, _ = store.Get(key)
	out, _ := sel.Select(v, Projection[[]string]{ID: "first-again", Fn: first})
	if runs != 3 || out[0] != "Mateo" {
		t.Errorf("data change: runs = %d, out = %v", runs, out)
	}
}

func TestSelector_NoData(t *testing.T) {
	var sel Selector[int]
	tests := []struct {
		name string
		view cache.EntryView
	}{
		{"idle", cache.EntryView{Status: cache.StatusIdle}},
		{"wrong type", cache.EntryView{Status: cache.StatusSuccess, HasData: true, Data: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := sel.Select(tt.view, Projection[int]{}); ok {
				t.Error("Select() ok = true")
			}
		})
	}
}

func TestSelector_NilProjection(t *testing.T) {
	var sel Selector[int]
	v := cache.EntryView{Key: cache.MustKey("n"), Status: cache.StatusSuccess, HasData: true, Data: 7}
	if out, ok := sel.Select(v, Projection[int]{}); !ok || out != 7 {
		t.Errorf("Select() = (%v, %v)", out, ok)
	}
}

func TestSelector_RecreatedEntry(t *testing.T) {
	store := cache.NewStore(cache.DefaultPolicy())
	key := cache.MustKey("appointments", "user")
	ident := Projection[[]string]{ID: "copy", Fn: func(in []string) []string { return append([]string(nil), in...) }}
	var sel Selector[[]string]

	store.Write(key, []string{"alice-appt"})
	v, _ := store.Get(key)
	sel.Select(v, ident)

	store.Remove(key)
	store.Write(key, []string{"bob-appt"})
	v, _ = store.Get(key)
	out, _ := sel.Select(v, ident)
	if len(out) != 1 || out[0] != "bob-appt" {
		t.Errorf("Select() after re-creation = %v, want [bob-appt]", out)
	}
}

func TestProject(t *testing.T) {
	store := cache.NewStore(cache.DefaultPolicy())
	key := cache.MustKey("n")
	runs := 0
	double := Projection[int]{ID: "double", Fn: func(n int) int { runs++; return n * 2 }}
	var sel Selector[int]

	if _, ok := Project(store, key, &sel, double); ok {
		t.Error("Project() on missing key ok = true")
	}
	store.Write(key, 21)
	for range 2 {
		if out, ok := Project(store, key, &sel, double); !ok || out != 42 {
			t.Errorf("Project() = (%v, %v)", out, ok)
		}
	}
	if runs != 1 {
		t.Errorf("projection ran %d times, want 1", runs)
	}

	if out, ok := Project(store, key, nil, double); !ok || out != 42 || runs != 2 {
		t.Errorf("Project(nil selector) = (%v, %v), runs = %d", out, ok, runs)
	}
}
