// Package examples contains runnable example programs demonstrating
// the eventloop package functionality.
//
// # Examples
//
// The examples directory contains the following subdirectories:
//
//   - 01_basic_usage: Fundamental event loop operations
//   - 02_descriptors: Waiting on descriptor readiness
//   - 03_timers: Timer ordering, self deletion, drift and clamping
//
// # Running Examples
//
// Each example can be run from the repository root:
//
//	go run ./eventloop/examples/01_basic_usage/
//	go run ./eventloop/examples/02_descriptors/
//	go run ./eventloop/examples/03_timers/
package examples
