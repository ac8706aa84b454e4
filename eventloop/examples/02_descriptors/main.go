//go:build linux || darwin

// Example: Descriptor Readiness
//
// This example demonstrates waiting on file descriptors:
// - Listening for read readiness on a pipe
// - Writing to the pipe from timers
// - Stopping listening, so the loop exits
//
// Run with: go run ./eventloop/examples/02_descriptors/
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/go-pollloop/eventloop"
	"golang.org/x/sys/unix"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		panic(err)
	}
	r, w := fds[0], fds[1]
	defer unix.Close(r)

	var loop *eventloop.Loop
	loop, err := eventloop.New(eventloop.WithFDHandler(func(fd int, events eventloop.IOEvents) error {
		var buf [64]byte
		n, err := unix.Read(fd, buf[:])
		if err != nil {
			return err
		}
		if n == 0 {
			// write end closed
			fmt.Println("Reader: EOF, no longer listening")
			return loop.ListenFD(fd, 0)
		}
		fmt.Printf("Reader: got %q (events %#x)\n", buf[:n], events)
		return nil
	}))
	if err != nil {
		panic(err)
	}

	if err := loop.ListenFD(r, eventloop.EventRead); err != nil {
		panic(err)
	}

	js, _ := eventloop.NewJS(loop)
	for i, msg := range []string{"hello", "from", "timers"} {
		_, _ = js.SetTimeout(func() {
			fmt.Printf("Writer: sending %q\n", msg)
			_, _ = unix.Write(w, []byte(msg))
		}, 100*(i+1))
	}
	_, _ = js.SetTimeout(func() {
		fmt.Println("Writer: closing")
		_ = unix.Close(w)
	}, 500)

	if err := loop.Run(ctx); err != nil {
		fmt.Printf("Loop exited with: %v\n", err)
	}
}
