// Package internal holds helpers private to accountflow.
//
// # Sub-packages
//
//   - events: async output dispatch to a single sink
//   - flows: account creation and sign-in state machines
//   - logging: zap logger construction for binaries
//   - rate: Redis fixed-window attempt counters
//
// # What this package must NOT do
//
//   - Export types that appear in the public accountflow API.
package internal
