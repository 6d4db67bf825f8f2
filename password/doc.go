// Package password hashes and verifies credentials with Argon2id for the
// in-memory reference identity provider.
//
// # Output format
//
// Hashes are encoded in PHC string format with unpadded base64:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// # What this package must NOT do
//
//   - Enforce password strength. The form validator owns that policy.
//   - Store or log plaintext passwords.
//   - Import any other accountflow package.
package password
