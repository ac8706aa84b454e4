// Example: Timer Semantics
//
// This example walks through how the loop orders and reschedules timers:
// - Nearest first, with equal targets resolved newest first
// - An interval deleting itself while its callback runs
// - Interval drift after a slow callback
// - Minimum delay clamping
//
// Run with: go run ./eventloop/examples/03_timers/
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/go-pollloop/eventloop"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	loop, err := eventloop.New(eventloop.WithMinDelay(4))
	if err != nil {
		panic(err)
	}
	js, err := eventloop.NewJS(loop)
	if err != nil {
		panic(err)
	}

	start := time.Now()
	since := func() time.Duration { return time.Since(start).Round(time.Millisecond) }

	orderingExample(loop)
	selfDeleteExample(loop, since)
	driftExample(js, since)
	clampingExample(js)

	// the loop exits by itself once every timer is gone
	if err := loop.Run(ctx); err != nil {
		fmt.Printf("Loop exited with: %v\n", err)
	}
	fmt.Printf("All timers done after %v\n", since())
}

// orderingExample schedules timers out of order. The table keeps the
// nearest timer last, and a new timer stops bubbling at an equal target, so
// "tie-2" fires before "tie-1".
func orderingExample(loop *eventloop.Loop) {
	fmt.Println("\n=== Ordering ===")
	for _, v := range []struct {
		name  string
		delay float64
	}{
		{"late", 60},
		{"tie-1", 40},
		{"early", 20},
		{"tie-2", 40},
	} {
		name := v.name
		if _, err := loop.CreateTimer(func() { fmt.Printf("Ordering: %s\n", name) }, v.delay, true); err != nil {
			panic(err)
		}
	}
	if t, ok := loop.Nearest(); ok {
		fmt.Printf("Ordering: nearest is id %d, delay %vms\n", t.ID, t.Delay)
	}
}

// selfDeleteExample deletes an interval from inside its own callback. While
// the callback runs the timer is out of the table, held as the expiring
// timer, so the delete marks it instead, and the loop drops it afterwards.
func selfDeleteExample(loop *eventloop.Loop, since func() time.Duration) {
	fmt.Println("\n=== Self Delete ===")
	var (
		id    eventloop.TimerID
		count int
	)
	id, err := loop.CreateTimer(func() {
		count++
		expiring, _ := loop.Expiring()
		fmt.Printf("Self delete: tick %d at %v (expiring id %d, %d timers in the table)\n",
			count, since(), expiring.ID, loop.TimerCount())
		if count == 3 {
			fmt.Printf("Self delete: DeleteTimer(%d) = %v\n", id, loop.DeleteTimer(id))
			fmt.Printf("Self delete: DeleteTimer(%d) again = %v\n", id, loop.DeleteTimer(id))
		}
	}, 100, false)
	if err != nil {
		panic(err)
	}
}

// driftExample runs an interval whose callback takes 30ms. The next target
// is computed when the timer fires, before the callback, so ticks land
// roughly every 50ms, and any lateness in a tick carries into the next.
func driftExample(js *eventloop.JS, since func() time.Duration) {
	fmt.Println("\n=== Drift ===")
	var (
		id   eventloop.TimerID
		last time.Duration
		n    int
	)
	id, _ = js.SetInterval(func() {
		now := since()
		if n > 0 {
			fmt.Printf("Drift: tick %d, %v since the last one\n", n, now-last)
		}
		last = now
		n++
		time.Sleep(30 * time.Millisecond)
		if n == 5 {
			js.ClearInterval(id)
		}
	}, 50)
}

// clampingExample chains zero delay timeouts. The loop was created with a
// minimum delay of 4ms, so each link waits at least that long.
func clampingExample(js *eventloop.JS) {
	fmt.Println("\n=== Minimum Delay Clamping ===")
	var (
		chain func(depth int)
		start time.Time
	)
	chain = func(depth int) {
		fmt.Printf("Clamping: depth %d after %v\n", depth, time.Since(start).Round(time.Millisecond))
		if depth < 5 {
			_, _ = js.SetTimeout(func() { chain(depth + 1) }, 0)
		}
	}
	_, _ = js.SetTimeout(func() {
		start = time.Now()
		chain(1)
	}, 600)
}
