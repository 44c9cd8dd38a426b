package query_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/query"
)

func ExampleClient_Fetch() {
	store := cache.NewStore(cache.DefaultPolicy())
	client := query.NewClient(store)
	defer func() { _ = client.Close() }()

	calls := 0
	treatments := query.Typed(func(ctx context.Context, key cache.Key) ([]string, error) {
		calls++
		return []string{"massage", "facial", "scrub"}, nil
	})

	key := cache.MustKey("treatments")
	for range 3 {
		data, _ := client.Fetch(context.Background(), key, treatments, query.Options{})
		names, _ := query.As[[]string](data)
		fmt.Println(names)
	}
	fmt.Println("calls:", calls)
	// Output:
	// [massage facial scrub]
	// [massage facial scrub]
	// [massage facial scrub]
	// calls: 1
}

func ExampleProject() {
	store := cache.NewStore(cache.DefaultPolicy())
	key := cache.MustKey("staff")
	store.Write(key, []string{"Divya", "Sandra"})

	var sel query.Selector[[]string]
	first := query.Projection[[]string]{ID: "first", Fn: func(s []string) []string { return s[:1] }}
	out, _ := query.Project(store, key, &sel, first)
	fmt.Println(out)
	// Output:
	// [Divya]
}
