// Package flows contains the account creation and sign-in pipelines as
// pure functions over injected dependencies.
//
// Each flow function (RunCreateAccount, RunSignIn, RunFetchProfile) accepts a
// typed dependency struct of funcs and returns a terminal result value. Steps
// run strictly in sequence: a step starts only after the previous one
// completed, and a failure short-circuits every later step.
//
// # Architecture boundaries
//
// Flow functions coordinate the validator, the auth gateway, the profile store,
// metrics and state observers. They do NOT own any of these resources;
// ownership stays with the orchestrators in the root package.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import accountflow (to avoid import cycles).
//   - Retry, cache or roll back a provider call.
package flows
