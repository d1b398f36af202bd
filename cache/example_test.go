package cache_test

import (
	"fmt"
	"time"

	"polyrepo/cache"
)

func ExampleCache_GetOrLoad() {
	c := cache.New[string, []string](cache.Config{
		Name:    "adverts",
		MaxSize: 100,
		TTL:     time.Minute,
	})

	load := func() ([]string, error) {
		fmt.Println("loading")
		return []string{"bike", "car"}, nil
	}
	rows, _ := c.GetOrLoad("entityType=User", load)
	rows, _ = c.GetOrLoad("entityType=User", load)
	fmt.Println(rows)
	// Output:
	// loading
	// [bike car]
}
