// Package memory provides in-process implementations of the accountflow
// collaborators: an AuthGateway backed by Argon2id hashes and session tokens,
// and a ProfileStore holding encoded documents.
//
// Both record call counts and accept injected faults and holds, which makes
// them suitable as test doubles and as the default backend of the load driver.
package memory
