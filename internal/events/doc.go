// Package events implements the asynchronous terminal-output dispatcher used
// by the accountflow engine.
//
// The Dispatcher receives events from orchestrator goroutines via a buffered
// channel and forwards them to a single Sink on a dedicated goroutine, so a
// slow sink never stalls a submission pipeline unless the buffer is full and
// DropIfFull is false.
//
// # Architecture boundaries
//
// Event types are supplied by the caller through the type parameter. The
// package knows nothing about outputs, users or errors.
//
// # What this package must NOT do
//
//   - Block the caller indefinitely when DropIfFull is enabled.
//   - Panic on nil sink or zero-value config.
//   - Deliver an event more than once.
package events
