package main

import (
	"fmt"
	"sync"

	. "github.com/jsp-lqk/sharded-memcached"
)

func main() {
	client, err := NewShared(Config{Namespace: "demo"}, "127.0.0.1:11211")
	if err != nil {
		panic(err)
	}
	defer client.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := client.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i)), 0); err != nil {
				fmt.Println("set:", err.Error())
			}
		}(i)
	}
	wg.Wait()

	keys := make([]string, 10)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}
	values, err := client.GetMany(keys)
	if err != nil {
		fmt.Println("get many:", err.Error())
	}
	for k, v := range values {
		fmt.Printf("%s = %s\n", k, v.([]byte))
	}

	stored, err := client.Add("key-0", []byte("other"), 0)
	if err != nil {
		fmt.Println("add:", err.Error())
	}
	fmt.Println("add over existing key stored:", stored)

	stats, err := client.Stats()
	if err != nil {
		fmt.Println("stats:", err.Error())
	}
	for addr, s := range stats {
		fmt.Printf("%s: curr_items=%s\n", addr, s["curr_items"])
	}
}
