// Package accountflow orchestrates account creation and sign-in against two
// external collaborators: an identity backend ([AuthGateway]) and a profile
// document store ([ProfileStore]).
//
// Account creation validates the form, creates the identity, then persists
// the profile keyed by the returned [IdentityID]. Sign-in validates the form,
// authenticates, then fetches the profile. Each accepted submission runs on
// its own goroutine and yields exactly one terminal [Output] carrying either
// the [User] or one error from a closed taxonomy ([ValidationError],
// [AuthError], [PersistenceError]).
//
// # Architecture boundaries
//
// accountflow is the public surface. It exposes [Engine], [Builder], [Config],
// the orchestrators and value types. The state machines live in
// internal/flows; output relaying lives in internal/events. Provider
// implementations live under provider/ and depend on this package, never the
// reverse.
//
// # What this package must NOT do
//
//   - Retry, cache or roll back a provider call.
//   - Log or persist a password.
//   - Run two submissions concurrently on one orchestrator.
//   - Map provider errors across taxonomies.
package accountflow
