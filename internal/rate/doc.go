// Package rate provides Redis fixed-window attempt counters.
//
// # Window semantics
//
// INCR + conditional EXPIRE on the first hit. Take decides on the count INCR
// returns, so concurrent callers cannot overshoot the budget. Release
// decrements through a script that never creates a key. Keys are
// <prefix>:<sha256(subject)>.
//
// # What this package must NOT do
//
//   - Decide what an attempt is. Callers choose when to Hit and Reset.
//   - Be imported outside the accountflow module.
package rate
