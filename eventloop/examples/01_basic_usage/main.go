// Example: Basic Event Loop Usage
//
// This example demonstrates the fundamental usage of the event loop:
// - Creating a loop, with a structured logger
// - Scheduling timers, directly and through the JS adapter
// - Running the loop until there is nothing left to wait for
//
// Run with: go run ./eventloop/examples/01_basic_usage/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joeycumines/go-pollloop/eventloop"
	"github.com/joeycumines/logiface"
)

func main() {
	// Create a context with timeout for the entire example
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Create a new event loop, logging failures as JSON to stderr
	loop, err := eventloop.New(
		eventloop.WithLogger(eventloop.NewJSONLogger(os.Stderr, logiface.LevelInformational)),
		eventloop.WithMetrics(true),
	)
	if err != nil {
		panic(err)
	}

	// Method 1: Create a timer directly, the callback may fail
	if _, err := loop.CreateTimer(func() error {
		fmt.Println("Timer: Fires after 100ms, then fails (see the log)")
		return fmt.Errorf("something went wrong")
	}, 100, true); err != nil {
		panic(err)
	}

	// Method 2: Use the JS adapter for JavaScript-style APIs
	js, err := eventloop.NewJS(loop)
	if err != nil {
		panic(err)
	}

	// setTimeout
	_, _ = js.SetTimeout(func() {
		fmt.Println("setTimeout: Fires after 200ms")
	}, 200)

	// setInterval
	count := 0
	intervalID, _ := js.SetInterval(func() {
		count++
		fmt.Printf("setInterval: Tick %d\n", count)
	}, 300)

	// Clear the interval after 1 second, leaving nothing to wait for
	_, _ = js.SetTimeout(func() {
		js.ClearInterval(intervalID)
		fmt.Println("Interval cleared after 1 second")
	}, 1000)

	// Run the loop (blocks until nothing is left, or context cancellation)
	if err := loop.Run(ctx); err != nil {
		fmt.Printf("Loop exited with: %v\n", err)
	}

	m := loop.Metrics()
	fmt.Printf("Loop stopped: %d timers fired, %d failed, P99 callback latency %v\n",
		m.TimersFired, m.TimerFailures, m.Latency.P99)
}
