// Package redisstore implements the accountflow profile store and orphan
// ledger on Redis.
//
// # Key layout
//
//	<prefix>:user:<identity>     JSON profile document
//	<prefix>:orphans             sorted set of orphaned identities by detection time
//	<prefix>:orphan:<identity>   hash with email, cause code and detection time
//
// # What this package must NOT do
//
//   - Cache profiles or retry commands.
//   - Store credentials.
package redisstore
